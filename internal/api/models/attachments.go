package models

import "time"

// AttachmentData describes one downloaded attachment.
type AttachmentData struct {
	ID          string    `json:"id" doc:"Attachment identifier"`
	OriginalURL string    `json:"original_url" doc:"Source URL"`
	FileName    string    `json:"file_name" example:"invoice.pdf" doc:"File name derived from the URL"`
	MimeType    string    `json:"mime_type" example:"application/pdf" doc:"Detected MIME type"`
	Size        int64     `json:"size" example:"12345" doc:"File size in bytes"`
	CreatedAt   time.Time `json:"created_at" doc:"Download timestamp"`
}

// AttachmentResponse wraps one attachment.
type AttachmentResponse struct {
	Body AttachmentData
}

// AttachmentListData holds all stored attachments, newest first.
type AttachmentListData struct {
	Attachments []AttachmentData `json:"attachments" doc:"Stored attachments"`
	Count       int              `json:"count" example:"2" doc:"Number of attachments"`
}

// AttachmentListResponse wraps the attachment list.
type AttachmentListResponse struct {
	Body AttachmentListData
}

// AttachmentFetchRequest asks the helper to download a deep-linked file.
type AttachmentFetchRequest struct {
	Body struct {
		URL string `json:"url" minLength:"1" example:"wab2b-helper:https://example.com/invoice.pdf" doc:"Deep link or plain http(s) URL"`
	}
}

// AttachmentSaveRequest copies a stored attachment to a destination path.
type AttachmentSaveRequest struct {
	ID   string `path:"id" doc:"Attachment identifier"`
	Body struct {
		Destination string `json:"destination" minLength:"1" doc:"Absolute path to save the file to"`
	}
}

// AttachmentSaveResponse reports where the attachment was saved.
type AttachmentSaveResponse struct {
	Body struct {
		SavedPath string `json:"saved_path" doc:"Path the attachment was copied to"`
	}
}
