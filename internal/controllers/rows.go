package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"tradedoc/internal/ingest"
)

const maxUploadBytes = 20 << 20

var errUnsupportedUpload = errors.New("only .xlsx files are accepted")

// readRows takes rows from a multipart "file" upload (xlsx) or from a JSON body
// that is either an array of rows or {"rows": [...]}.
func readRows(c *gin.Context) ([]ingest.Row, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		header, err := c.FormFile("file")
		if err != nil {
			return nil, fmt.Errorf("missing file: %w", err)
		}
		if header.Size > maxUploadBytes {
			return nil, fmt.Errorf("file too large (%d bytes)", header.Size)
		}
		if !strings.EqualFold(filepath.Ext(header.Filename), ".xlsx") {
			return nil, errUnsupportedUpload
		}
		f, err := header.Open()
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return ingest.ReadWorkbook(f)
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	dec := json.NewDecoder(c.Request.Body)
	dec.UseNumber()

	var body any
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("invalid body: %w", err)
	}
	if wrapped, ok := body.(map[string]any); ok {
		body = wrapped["rows"]
	}
	items, ok := body.([]any)
	if !ok {
		return nil, errors.New("invalid body: expected an array of rows")
	}

	rows := make([]ingest.Row, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("invalid body: row %d is not an object", i)
		}
		rows[i] = ingest.Row(obj)
	}
	return rows, nil
}
