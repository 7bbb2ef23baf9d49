package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mvasconcellos/driveup/internal/drive"
)

// rootFolderID is the Drive API alias for the user's My Drive root.
const rootFolderID = "root"

// newDriveClient builds an authenticated Drive client from the resolved
// config. Returns a login hint when no token is saved.
func newDriveClient(ctx context.Context, logger *slog.Logger) (*drive.Client, error) {
	creds := drive.Credentials{
		ClientID:     resolvedCfg.Auth.ClientID,
		ClientSecret: resolvedCfg.Auth.ClientSecret,
	}

	token, err := drive.TokenSourceFromPath(ctx, creds, resolvedCfg.Auth.TokenPath, logger)
	if err != nil {
		return nil, loginHint(err)
	}

	return drive.NewClient("", defaultHTTPClient(), token, logger), nil
}

// splitRemotePath breaks a slash-separated Drive path into folder name
// segments. Empty, "/", and "." all mean the Drive root.
func splitRemotePath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" || path == "." {
		return nil
	}

	return strings.Split(path, "/")
}

// resolveFolderPath walks a slash-separated path from the Drive root and
// returns the folder it names.
func resolveFolderPath(ctx context.Context, client *drive.Client, path string) (drive.File, error) {
	current := drive.File{ID: rootFolderID, Name: "/", MimeType: drive.FolderMimeType}

	for _, segment := range splitRemotePath(path) {
		folder, err := client.FindFolder(ctx, current.ID, segment)
		if errors.Is(err, drive.ErrNotFound) {
			return drive.File{}, fmt.Errorf("remote folder %q not found under %q", segment, current.Name)
		}

		if err != nil {
			return drive.File{}, fmt.Errorf("resolving remote path %q: %w", path, err)
		}

		current = folder
	}

	return current, nil
}

// ensureFolderPath walks a slash-separated path from the Drive root,
// creating any missing segments, and returns the final folder.
func ensureFolderPath(ctx context.Context, client *drive.Client, path string) (drive.File, error) {
	current := drive.File{ID: rootFolderID, Name: "/", MimeType: drive.FolderMimeType}

	for _, segment := range splitRemotePath(path) {
		folder, err := client.FindFolder(ctx, current.ID, segment)
		if errors.Is(err, drive.ErrNotFound) {
			folder, err = client.CreateFolder(ctx, current.ID, segment)
		}

		if err != nil {
			return drive.File{}, fmt.Errorf("ensuring remote path %q: %w", path, err)
		}

		current = folder
	}

	return current, nil
}

// resolveDestination turns the --dest/--dest-id flag pair into a
// destination folder. --dest-id wins when both are set; an empty pair
// means the Drive root.
func resolveDestination(ctx context.Context, client *drive.Client, destPath, destID string) (drive.File, error) {
	if destID != "" {
		folder, err := client.GetFile(ctx, destID)
		if err != nil {
			return drive.File{}, fmt.Errorf("looking up destination %q: %w", destID, err)
		}

		if !folder.IsFolder() {
			return drive.File{}, fmt.Errorf("destination %q is not a folder", destID)
		}

		return folder, nil
	}

	return ensureFolderPath(ctx, client, destPath)
}
