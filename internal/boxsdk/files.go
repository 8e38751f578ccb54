package boxsdk

import (
	"context"
	"errors"

	"github.com/imroc/req/v3"
)

const (
	filesList     = "/api/files/list"
	filesDownload = "/api/files/download"
	filesUpload   = "/api/files/upload"
	filesDelete   = "/api/files/delete"
	filesStorage  = "/api/files/storage"
)

type FilesAPI struct {
	client *req.Client
}

func newFilesAPI(client *req.Client) *FilesAPI {
	return &FilesAPI{client: client}
}

// List returns the full recursive listing of the account's files.
func (f *FilesAPI) List(ctx context.Context) (files []*RemoteFile, err error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetSuccessResult(&files).
		Get(filesList)

	if err := handleAPIError(resp, err, "files list"); err != nil {
		return nil, err
	}

	return files, nil
}

// Download fetches the raw bytes of a file. A missing file surfaces as
// ErrFileNotFound.
func (f *FilesAPI) Download(ctx context.Context, path string) ([]byte, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParam("path", path).
		Get(filesDownload)

	if err := handleAPIError(resp, err, "files download"); err != nil {
		return nil, err
	}

	return resp.ToBytes()
}

// Upload stores body under path, overwriting any existing content. The call
// is idempotent. Quota exhaustion surfaces as ErrQuotaExceeded.
func (f *FilesAPI) Upload(ctx context.Context, path string, body []byte) error {
	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParam("path", path).
		SetContentType("application/octet-stream").
		SetBody(body).
		Post(filesUpload)

	return handleAPIError(resp, err, "files upload")
}

// Delete removes a file. A 404 means another client already deleted it and
// counts as success.
func (f *FilesAPI) Delete(ctx context.Context, path string) error {
	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParam("path", path).
		Delete(filesDelete)

	err = handleAPIError(resp, err, "files delete")
	if errors.Is(err, ErrFileNotFound) {
		return nil
	}
	return err
}

// Storage returns the account's storage usage.
func (f *FilesAPI) Storage(ctx context.Context) (info *StorageInfo, err error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetSuccessResult(&info).
		Get(filesStorage)

	if err := handleAPIError(resp, err, "files storage"); err != nil {
		return nil, err
	}

	return info, nil
}
