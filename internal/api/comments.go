package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path"
	"strconv"

	"github.com/tgienger/tasktrack/internal/models"
)

// Upload is one file attached to a new comment
type Upload struct {
	Filename string
	Content  io.Reader
}

func commentsPath(taskID int64) string {
	return taskPath(taskID) + "/comments"
}

// ListComments fetches a task's comments in server order, newest first
func (c *Client) ListComments(ctx context.Context, taskID int64) ([]models.Comment, error) {
	var comments []models.Comment
	if err := c.do(ctx, request{method: http.MethodGet, path: commentsPath(taskID)}, &comments); err != nil {
		return nil, err
	}
	for i := range comments {
		comments[i].TaskID = taskID
	}
	return comments, nil
}

// AddComment posts a comment. With uploads the body is multipart form data
// (content + files), otherwise JSON.
func (c *Client) AddComment(ctx context.Context, taskID int64, content string, uploads []Upload) error {
	r := request{method: http.MethodPost, path: commentsPath(taskID)}
	if len(uploads) == 0 {
		body, err := jsonBody(map[string]string{"content": content})
		if err != nil {
			return err
		}
		r.body, r.contentType = body, "application/json"
		return c.do(ctx, r, nil)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("content", content); err != nil {
		return fmt.Errorf("encode comment: %w", err)
	}
	for _, u := range uploads {
		fw, err := mw.CreateFormFile("files", path.Base(u.Filename))
		if err != nil {
			return fmt.Errorf("encode attachment %s: %w", u.Filename, err)
		}
		if _, err := io.Copy(fw, u.Content); err != nil {
			return fmt.Errorf("read attachment %s: %w", u.Filename, err)
		}
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("encode comment: %w", err)
	}
	r.body, r.contentType = &buf, mw.FormDataContentType()
	return c.do(ctx, r, nil)
}

// DeleteComment deletes a comment and its attachments
func (c *Client) DeleteComment(ctx context.Context, id int64) error {
	return c.do(ctx, request{method: http.MethodDelete, path: "/api/comments/" + strconv.FormatInt(id, 10)}, nil)
}

// DownloadAttachment streams an attachment into w and returns the server-provided filename
func (c *Client) DownloadAttachment(ctx context.Context, id int64, w io.Writer) (string, error) {
	resp, err := c.send(ctx, request{
		method: http.MethodGet,
		path:   "/api/attachments/" + strconv.FormatInt(id, 10),
		sink:   w,
	})
	if err != nil {
		return "", err
	}
	name := "attachment-" + strconv.FormatInt(id, 10)
	if cd := resp.header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil && params["filename"] != "" {
			name = path.Base(params["filename"])
		}
	}
	return name, nil
}
