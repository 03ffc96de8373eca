package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/wab2b/wab2b-helper/internal/api/models"
	"github.com/wab2b/wab2b-helper/internal/attachment"
)

// registerAttachmentRoutes registers the deep-link attachment endpoints.
func (s *Server) registerAttachmentRoutes() {
	if s.options.Attachments == nil {
		return
	}

	store := s.options.Attachments

	// Fetch an attachment from a deep link or plain URL
	huma.Register(s.api, huma.Operation{
		OperationID: "fetch-attachment",
		Method:      http.MethodPost,
		Path:        "/api/attachments",
		Summary:     "Fetch Attachment",
		Description: "Download a deep-linked file into the local attachment store",
		Tags:        []string{"attachments"},
		Errors:      []int{400, 401, 502},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.AttachmentFetchRequest) (*models.AttachmentResponse, error) {
		target := input.Body.URL
		if parsed, err := attachment.ParseSchemeURL(target); err == nil {
			target = parsed
		}

		info, err := store.Fetch(ctx, target)
		if err != nil {
			return nil, mapAttachmentError(err)
		}
		return &models.AttachmentResponse{Body: toAttachmentData(info)}, nil
	})

	// Current attachment
	huma.Register(s.api, huma.Operation{
		OperationID: "get-current-attachment",
		Method:      http.MethodGet,
		Path:        "/api/attachments/current",
		Summary:     "Current Attachment",
		Description: "Get the most recently downloaded attachment",
		Tags:        []string{"attachments"},
		Errors:      []int{401, 404},
		Security:    withAuth(),
	}, func(_ context.Context, _ *struct{}) (*models.AttachmentResponse, error) {
		info := store.Current()
		if info == nil {
			return nil, huma.Error404NotFound("no attachment downloaded yet")
		}
		return &models.AttachmentResponse{Body: toAttachmentData(info)}, nil
	})

	// List attachments
	huma.Register(s.api, huma.Operation{
		OperationID: "list-attachments",
		Method:      http.MethodGet,
		Path:        "/api/attachments",
		Summary:     "List Attachments",
		Description: "List all stored attachments, newest first",
		Tags:        []string{"attachments"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(_ context.Context, _ *struct{}) (*models.AttachmentListResponse, error) {
		infos := store.List()
		data := models.AttachmentListData{
			Attachments: make([]models.AttachmentData, 0, len(infos)),
			Count:       len(infos),
		}
		for _, info := range infos {
			data.Attachments = append(data.Attachments, toAttachmentData(info))
		}
		return &models.AttachmentListResponse{Body: data}, nil
	})

	// Get attachment by ID
	huma.Register(s.api, huma.Operation{
		OperationID: "get-attachment",
		Method:      http.MethodGet,
		Path:        "/api/attachments/{id}",
		Summary:     "Get Attachment",
		Description: "Get a stored attachment by identifier",
		Tags:        []string{"attachments"},
		Errors:      []int{401, 404},
		Security:    withAuth(),
	}, func(_ context.Context, input *struct {
		ID string `path:"id" doc:"Attachment identifier"`
	}) (*models.AttachmentResponse, error) {
		info, err := store.Get(input.ID)
		if err != nil {
			return nil, mapAttachmentError(err)
		}
		return &models.AttachmentResponse{Body: toAttachmentData(info)}, nil
	})

	// Save attachment to a destination path
	huma.Register(s.api, huma.Operation{
		OperationID: "save-attachment",
		Method:      http.MethodPost,
		Path:        "/api/attachments/{id}/save",
		Summary:     "Save Attachment",
		Description: "Copy a stored attachment to a destination path",
		Tags:        []string{"attachments"},
		Errors:      []int{400, 401, 404, 500},
		Security:    withAuth(),
	}, func(_ context.Context, input *models.AttachmentSaveRequest) (*models.AttachmentSaveResponse, error) {
		saved, err := store.SaveTo(input.ID, input.Body.Destination)
		if err != nil {
			return nil, mapAttachmentError(err)
		}
		resp := &models.AttachmentSaveResponse{}
		resp.Body.SavedPath = saved
		return resp, nil
	})
}

func toAttachmentData(info *attachment.FileInfo) models.AttachmentData {
	return models.AttachmentData{
		ID:          info.ID,
		OriginalURL: info.OriginalURL,
		FileName:    info.FileName,
		MimeType:    info.MimeType,
		Size:        info.Size,
		CreatedAt:   info.CreatedAt,
	}
}

// mapAttachmentError converts attachment store errors to Huma HTTP errors.
func mapAttachmentError(err error) error {
	var attachErr *attachment.Error
	if errors.As(err, &attachErr) {
		switch attachErr.Code {
		case attachment.ErrCodeInvalidURL:
			return huma.Error400BadRequest(attachErr.Message)
		case attachment.ErrCodeNotFound:
			return huma.Error404NotFound(attachErr.Message)
		case attachment.ErrCodeNetwork:
			return huma.Error502BadGateway(attachErr.Message)
		default:
			return huma.Error500InternalServerError(attachErr.Message)
		}
	}
	return huma.Error500InternalServerError(err.Error())
}
