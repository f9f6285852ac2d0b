package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/nimbusfs/uplink/errors"
)

// formUpload sends the whole file in one multipart form request. The body
// is assembled once and replayed byte for byte against each endpoint the
// failover loop tries.
func (u *Uploader) formUpload(ctx context.Context, req Request, size int64) (*Response, error) {
	urls, err := u.upEndpoints(ctx, req)
	if err != nil {
		return nil, err
	}

	content, err := u.readAll(req, size)
	if err != nil {
		return nil, errors.NewError("upload", err).WithKey(req.Key)
	}

	body, contentType, err := buildForm(req, content)
	u.blocks.Put(content)
	if err != nil {
		return nil, errors.NewError("upload", err).WithKey(req.Key)
	}

	if req.Progress != nil {
		req.Progress(0, size)
	}

	var raw json.RawMessage
	err = u.withFailover(urls, func(endpoint string) error {
		u.cfg.Logger.Debugf("form upload of %s to %s", req.SourcePath, endpoint)
		return u.cfg.Transport.PostJSON(ctx, endpoint, contentType, "", body, &raw)
	})
	if err != nil {
		return nil, err
	}

	if req.Progress != nil {
		req.Progress(size, size)
	}
	return parseResponse(raw)
}

// buildForm renders the multipart body: token, optional key, crc32, custom
// vars, then the file part.
func buildForm(req Request, content []byte) (body []byte, contentType string, err error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("token", req.Token); err != nil {
		return nil, "", err
	}
	if req.Key != "" {
		if err := w.WriteField("key", req.Key); err != nil {
			return nil, "", err
		}
	}
	if err := w.WriteField("crc32", fmt.Sprintf("%d", crc32.ChecksumIEEE(content))); err != nil {
		return nil, "", err
	}
	for _, name := range sortedVarNames(req.Vars) {
		if err := w.WriteField("x:"+name, req.Vars[name]); err != nil {
			return nil, "", err
		}
	}

	fileType := req.MimeType
	if fileType == "" {
		fileType = mimetype.Detect(content).String()
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(req.FileName)))
	header.Set("Content-Type", fileType)
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(content); err != nil {
		return nil, "", err
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func escapeQuotes(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

func parseResponse(raw json.RawMessage) (*Response, error) {
	var parsed struct {
		Key  string `json:"key"`
		Hash string `json:"hash"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrInvalidResponse, err)
	}
	return &Response{
		Key:  parsed.Key,
		Hash: parsed.Hash,
		Raw:  append([]byte{}, raw...),
	}, nil
}
