package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	apperrors "github.com/soledexapp/soledex-server/internal/errors"
)

const folderMimeType = "application/vnd.google-apps.folder"

// Drive archives image bytes to a Google Drive folder tree: one folder
// per brand under a fixed root. Folder IDs are cached per process; Drive
// allows duplicate names, so creation goes through a lookup-then-create
// guarded by a mutex.
type Drive struct {
	svc    *drive.Service
	rootID string

	mu      sync.Mutex
	folders map[string]string
}

// NewDrive creates a Drive sink using a service account credentials file.
// rootID is the ID of the folder all uploads go under.
func NewDrive(ctx context.Context, credentialsFile, rootID string) (*Drive, error) {
	svc, err := drive.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(drive.DriveFileScope),
	)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return &Drive{
		svc:     svc,
		rootID:  rootID,
		folders: make(map[string]string),
	}, nil
}

// Store implements Sink. A file that already exists under the folder is
// not uploaded again; its existing ID is returned.
func (d *Drive) Store(ctx context.Context, folder, name string, data []byte) (string, error) {
	folderID, err := d.folderID(ctx, folder)
	if err != nil {
		return "", err
	}

	if existing, err := d.findFile(ctx, folderID, name); err != nil {
		return "", err
	} else if existing != "" {
		return "drive:" + existing, nil
	}

	file := &drive.File{
		Name:    name,
		Parents: []string{folderID},
	}
	created, err := d.svc.Files.Create(file).
		Media(bytes.NewReader(data)).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return "", classifyDriveErr("upload", err)
	}
	return "drive:" + created.Id, nil
}

// Exists implements Sink.
func (d *Drive) Exists(ctx context.Context, folder, name string) (bool, error) {
	folderID, err := d.folderID(ctx, folder)
	if err != nil {
		return false, err
	}
	id, err := d.findFile(ctx, folderID, name)
	if err != nil {
		return false, err
	}
	return id != "", nil
}

// folderID resolves a folder name under the root, creating it on first
// use.
func (d *Drive) folderID(ctx context.Context, folder string) (string, error) {
	if folder == "" {
		return d.rootID, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if id, ok := d.folders[folder]; ok {
		return id, nil
	}

	query := fmt.Sprintf("name = '%s' and '%s' in parents and mimeType = '%s' and trashed = false",
		escapeQuery(folder), d.rootID, folderMimeType)
	list, err := d.svc.Files.List().Q(query).Fields("files(id)").PageSize(1).Context(ctx).Do()
	if err != nil {
		return "", classifyDriveErr("list folders", err)
	}
	if len(list.Files) > 0 {
		d.folders[folder] = list.Files[0].Id
		return list.Files[0].Id, nil
	}

	created, err := d.svc.Files.Create(&drive.File{
		Name:     folder,
		MimeType: folderMimeType,
		Parents:  []string{d.rootID},
	}).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", classifyDriveErr("create folder", err)
	}
	d.folders[folder] = created.Id
	return created.Id, nil
}

// findFile returns the ID of a file by name within a folder, empty when
// absent.
func (d *Drive) findFile(ctx context.Context, folderID, name string) (string, error) {
	query := fmt.Sprintf("name = '%s' and '%s' in parents and trashed = false",
		escapeQuery(name), folderID)
	list, err := d.svc.Files.List().Q(query).Fields("files(id)").PageSize(1).Context(ctx).Do()
	if err != nil {
		return "", classifyDriveErr("list files", err)
	}
	if len(list.Files) == 0 {
		return "", nil
	}
	return list.Files[0].Id, nil
}

// classifyDriveErr maps Drive API failures onto the pipeline taxonomy.
// Rate limits and server trouble are retryable; everything else is not
// worth retrying within a run but still only skips the one image.
func classifyDriveErr(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if gerr.Code == 429 || gerr.Code >= 500 {
			return apperrors.ErrStorageTransient.WithCause(fmt.Errorf("drive %s: %w", op, err))
		}
		return fmt.Errorf("drive %s: %w", op, err)
	}
	// Network-level failures are transient.
	return apperrors.ErrStorageTransient.WithCause(fmt.Errorf("drive %s: %w", op, err))
}

// escapeQuery escapes single quotes and backslashes for a Drive query
// string literal.
func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}
