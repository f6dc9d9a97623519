package ingest

import (
	"archive/zip"
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Fetch downloads a zipped shapefile over HTTP or FTP, extracts it, and
// returns the path to the .shp file. Census servers publish TIGER/Line
// archives on both schemes. An archive already on disk is not fetched again.
func Fetch(ctx context.Context, rawURL, destDir string) (string, error) {
	log := zap.L().With(
		zap.String("component", "ingest.fetch"),
		zap.String("url", rawURL),
	)

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", eris.Wrap(err, "ingest: create dest dir")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", eris.Wrap(err, "ingest: parse url")
	}
	zipName := filepath.Base(u.Path)
	if !strings.HasSuffix(zipName, ".zip") {
		return "", eris.Errorf("ingest: expected .zip archive, got %s", zipName)
	}
	zipPath := filepath.Join(destDir, zipName)

	if info, statErr := os.Stat(zipPath); statErr == nil && info.Size() > 0 {
		log.Debug("archive already on disk, skipping download", zap.String("path", zipPath))
	} else {
		log.Info("downloading shapefile archive")
		switch u.Scheme {
		case "http", "https":
			err = downloadHTTP(ctx, rawURL, zipPath)
		case "ftp":
			err = downloadFTP(ctx, u, zipPath)
		default:
			err = eris.Errorf("ingest: unsupported scheme %q", u.Scheme)
		}
		if err != nil {
			return "", err
		}
	}

	extractDir := filepath.Join(destDir, strings.TrimSuffix(zipName, ".zip"))
	if err := os.MkdirAll(extractDir, 0o755); err != nil {
		return "", eris.Wrap(err, "ingest: create extract dir")
	}
	if err := extractZIP(zipPath, extractDir); err != nil {
		return "", err
	}

	return findFileByExt(extractDir, ".shp")
}

func downloadHTTP(ctx context.Context, rawURL, dest string) error {
	client := &http.Client{Timeout: 10 * time.Minute}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return eris.Wrap(err, "ingest: build request")
	}

	resp, err := client.Do(req)
	if err != nil {
		return eris.Wrap(err, "ingest: download")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("ingest: download returned status %d", resp.StatusCode)
	}

	return writeFile(dest, resp.Body)
}

func downloadFTP(ctx context.Context, u *url.URL, dest string) error {
	host := u.Host
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, "21")
	}

	conn, err := ftp.Dial(host, ftp.DialWithTimeout(30*time.Second), ftp.DialWithContext(ctx))
	if err != nil {
		return eris.Wrapf(err, "ingest: ftp dial %s", host)
	}
	defer conn.Quit() //nolint:errcheck

	if err := conn.Login("anonymous", "anonymous"); err != nil {
		return eris.Wrap(err, "ingest: ftp login")
	}

	resp, err := conn.Retr(u.Path)
	if err != nil {
		return eris.Wrapf(err, "ingest: ftp retrieve %s", u.Path)
	}
	defer resp.Close() //nolint:errcheck

	return writeFile(dest, resp)
}

func writeFile(dest string, r io.Reader) error {
	f, err := os.Create(dest)
	if err != nil {
		return eris.Wrap(err, "ingest: create file")
	}
	defer f.Close() //nolint:errcheck

	if _, err := io.Copy(f, r); err != nil {
		return eris.Wrap(err, "ingest: write file")
	}
	return nil
}

func extractZIP(zipPath, destDir string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return eris.Wrap(err, "ingest: open zip")
	}
	defer r.Close() //nolint:errcheck

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		destPath := filepath.Join(destDir, filepath.Base(f.Name))

		rc, err := f.Open()
		if err != nil {
			return eris.Wrapf(err, "ingest: open zip entry %s", f.Name)
		}
		err = writeFile(destPath, rc)
		_ = rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func findFileByExt(dir, ext string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", eris.Wrap(err, "ingest: read directory")
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ext) {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", eris.Errorf("ingest: no %s file found in %s", ext, dir)
}
