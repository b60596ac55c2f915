package server

import (
	"errors"
	"fmt"
	"log"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonathan/otj-helper/internal/db"
	"github.com/jonathan/otj-helper/internal/events"
	"github.com/jonathan/otj-helper/internal/observability"
	"github.com/jonathan/otj-helper/internal/types"
)

const (
	// uploadFormMemory is how much of a multipart body is held in memory before spilling to disk.
	uploadFormMemory = 32 << 20
	// maxFilesPerRequest bounds the total request size to this many full-size files.
	maxFilesPerRequest = 20
	// multipartOverhead allows for part headers and boundaries.
	multipartOverhead = 1 << 20

	fileCacheControl = "private, max-age=3600"
)

// UploadResponse reports which files were attached and which were rejected
type UploadResponse struct {
	Attachments []db.Attachment `json:"attachments"`
	Rejected    []string        `json:"rejected"`
}

// handleUpload attaches one or more files to an activity
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	id, ok := s.pathID(w, r, "id", "activity")
	if !ok {
		return
	}

	activity, err := s.db.GetActivity(r.Context(), user.ID, id)
	if err != nil {
		s.handleError(w, err)
		return
	}
	if activity == nil {
		s.handleError(w, &ErrNotFound{Resource: "activity", ID: id})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxFilesPerRequest*s.cfg.MaxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(uploadFormMemory); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid upload: "+err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	var headers []*multipart.FileHeader
	for _, fh := range r.MultipartForm.File["files"] {
		if fh.Filename != "" {
			headers = append(headers, fh)
		}
	}
	if len(headers) == 0 {
		s.errorResponse(w, http.StatusBadRequest, "No files selected.")
		return
	}

	resp := UploadResponse{Attachments: []db.Attachment{}, Rejected: []string{}}
	var pending []db.NewAttachment
	for _, fh := range headers {
		stored, reason := s.storeUpload(fh)
		if reason != "" {
			resp.Rejected = append(resp.Rejected, reason)
			continue
		}
		pending = append(pending, *stored)
	}

	if len(pending) > 0 {
		created, err := s.db.CreateAttachments(r.Context(), activity.ID, pending)
		if err != nil {
			for _, p := range pending {
				if derr := s.files.Delete(p.StoredName); derr != nil {
					log.Printf("Failed to clean up %s: %v", p.StoredName, derr)
				}
				observability.RecordUpload(observability.UploadFailed)
			}
			s.handleError(w, err)
			return
		}
		for range created {
			observability.RecordUpload(observability.UploadStored)
		}
		resp.Attachments = created
		log.Printf("User %d attached %d file(s) to activity %d", user.ID, len(created), activity.ID)
		s.broker.Publish(user.ID, events.AttachmentAdded, map[string]any{
			"activity_id": activity.ID,
			"count":       len(created),
		})
	}

	status := http.StatusCreated
	if len(resp.Attachments) == 0 {
		status = http.StatusUnprocessableEntity
	}
	s.jsonResponse(w, status, resp)
}

// storeUpload checks one file against the allowed types and size limit and
// writes it to storage. A non-empty reason means the file was skipped.
func (s *Server) storeUpload(fh *multipart.FileHeader) (*db.NewAttachment, string) {
	name := cleanFilename(fh.Filename)
	contentType, _, err := mime.ParseMediaType(fh.Header.Get("Content-Type"))
	if err != nil || !types.AllowedUploadTypes[contentType] {
		observability.RecordUpload(observability.UploadRejected)
		return nil, fmt.Sprintf("%s: file type '%s' is not allowed.", name, fh.Header.Get("Content-Type"))
	}
	if fh.Size > s.cfg.MaxUploadBytes {
		observability.RecordUpload(observability.UploadRejected)
		return nil, fmt.Sprintf("%s: exceeds the %d MB size limit.", name, s.cfg.MaxUploadBytes>>20)
	}

	f, err := fh.Open()
	if err != nil {
		observability.RecordUpload(observability.UploadFailed)
		return nil, fmt.Sprintf("%s: could not be read.", name)
	}
	defer func() { _ = f.Close() }()

	stored, err := s.files.Save(f, name, contentType)
	if err != nil {
		log.Printf("Failed to store upload %s: %v", name, err)
		observability.RecordUpload(observability.UploadFailed)
		return nil, fmt.Sprintf("%s: could not be saved.", name)
	}
	return &db.NewAttachment{
		Filename:     name,
		StoredName:   stored.Name,
		ContentType:  contentType,
		FileSize:     stored.Size,
		HasThumbnail: stored.HasThumbnail,
	}, ""
}

// handleServeFile serves an attachment's original file
func (s *Server) handleServeFile(w http.ResponseWriter, r *http.Request) {
	att, ok := s.loadAttachment(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", att.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": att.Filename}))
	s.serveStored(w, r, att, s.files.Path(att.StoredName))
}

// handleServeThumb serves an image attachment's thumbnail
func (s *Server) handleServeThumb(w http.ResponseWriter, r *http.Request) {
	att, ok := s.loadAttachment(w, r)
	if !ok {
		return
	}
	if !att.HasThumbnail {
		s.handleError(w, &ErrNotFound{Resource: "thumbnail", ID: att.ID})
		return
	}
	s.serveStored(w, r, att, s.files.ThumbPath(att.StoredName))
}

// handleDeleteAttachment removes an attachment and its stored file
func (s *Server) handleDeleteAttachment(w http.ResponseWriter, r *http.Request) {
	att, ok := s.loadAttachment(w, r)
	if !ok {
		return
	}
	userID := att.ownerID

	if _, err := s.db.DeleteAttachment(r.Context(), userID, att.ID); err != nil {
		s.handleError(w, err)
		return
	}
	if err := s.files.Delete(att.StoredName); err != nil {
		log.Printf("Failed to remove attachment file %s: %v", att.StoredName, err)
	}

	s.broker.Publish(userID, events.AttachmentDeleted, map[string]any{
		"id":          att.ID,
		"activity_id": att.ActivityID,
	})
	w.WriteHeader(http.StatusNoContent)
}

// ownedAttachment is an attachment together with the user it was resolved for.
type ownedAttachment struct {
	*db.Attachment
	ownerID int64
}

func (s *Server) loadAttachment(w http.ResponseWriter, r *http.Request) (*ownedAttachment, bool) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return nil, false
	}
	id, ok := s.pathID(w, r, "id", "attachment")
	if !ok {
		return nil, false
	}

	att, err := s.db.GetAttachment(r.Context(), user.ID, id)
	if err != nil {
		s.handleError(w, err)
		return nil, false
	}
	if att == nil {
		s.handleError(w, &ErrNotFound{Resource: "attachment", ID: id})
		return nil, false
	}
	return &ownedAttachment{Attachment: att, ownerID: user.ID}, true
}

// serveStored streams a file from storage. The name passed to ServeContent is
// empty so a thumbnail's type is sniffed from its bytes.
func (s *Server) serveStored(w http.ResponseWriter, r *http.Request, att *ownedAttachment, path string) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		s.handleError(w, &ErrNotFound{Resource: "file", ID: att.ID})
		return
	}
	if err != nil {
		s.handleError(w, err)
		return
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		s.handleError(w, err)
		return
	}
	w.Header().Set("Cache-Control", fileCacheControl)
	http.ServeContent(w, r, "", info.ModTime(), f)
}

// cleanFilename keeps only the base name of an uploaded file.
func cleanFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == "/" {
		return "upload"
	}
	return name
}
