package database

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"time"

	"github.com/icodeforyou/spotpilot-go/hours"
)

// BackupKind tags why a backup was taken.
type BackupKind string

const (
	BackupScheduled BackupKind = "scheduled"
	BackupMigration BackupKind = "migration"
)

const backupTimeLayout = "20060102_150405"

// Backup names look like 20250310_023000_v1_scheduled.db.zip, the version is
// the schema version of the snapshot.
var backupName = regexp.MustCompile(`^(\d{8}_\d{6})_v(\d+)_([a-z]+)\.db\.zip$`)

// BackupFile is a snapshot found in the backup directory.
type BackupFile struct {
	Path          string
	TakenAt       time.Time
	SchemaVersion int
	Kind          BackupKind
}

func (d *Database) backupDir() string {
	return filepath.Join(filepath.Dir(d.path), "backups")
}

func (d *Database) schemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := d.read.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

// Backup snapshots the database with VACUUM INTO and stores it zipped in the
// backups directory next to the database file. It returns the zip path.
func (d *Database) Backup(ctx context.Context, kind BackupKind) (string, error) {
	version, err := d.schemaVersion(ctx)
	if err != nil {
		return "", err
	}
	dir := d.backupDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating backup directory: %w", err)
	}

	name := fmt.Sprintf("%s_v%d_%s.db", d.now().In(hours.Location()).Format(backupTimeLayout), version, kind)
	snapshot := filepath.Join(dir, name)
	if _, err := d.write.ExecContext(ctx, "VACUUM INTO ?", snapshot); err != nil {
		return "", fmt.Errorf("vacuuming database into %s: %w", snapshot, err)
	}
	defer func() {
		if err := os.Remove(snapshot); err != nil {
			d.logger.Warn("could not remove uncompressed backup", slog.String("path", snapshot), slog.Any("error", err))
		}
	}()

	zipPath := snapshot + ".zip"
	if err := zipFile(snapshot, zipPath, filepath.Base(d.path)); err != nil {
		os.Remove(zipPath)
		return "", err
	}

	d.logger.Info("database backup complete",
		slog.String("path", zipPath),
		slog.Int("schema_version", version),
		slog.String("kind", string(kind)))
	return zipPath, nil
}

// zipFile deflates src into a new archive at dst holding a single entry.
func zipFile(src, dst, entry string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening snapshot: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("reading snapshot info: %w", err)
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("creating zip header: %w", err)
	}
	header.Name = entry
	header.Method = zip.Deflate

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating zip file: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("creating zip entry: %w", err)
	}
	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("compressing snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalizing zip file: %w", err)
	}
	return out.Close()
}

// Backups lists the snapshots in the backup directory, oldest first. Files
// not named like a backup are ignored.
func (d *Database) Backups() ([]BackupFile, error) {
	entries, err := os.ReadDir(d.backupDir())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}

	var out []BackupFile
	for _, e := range entries {
		m := backupName.FindStringSubmatch(e.Name())
		if m == nil || e.IsDir() {
			continue
		}
		takenAt, err := time.ParseInLocation(backupTimeLayout, m[1], hours.Location())
		if err != nil {
			d.logger.Debug("unparsable backup timestamp", slog.String("file", e.Name()), slog.Any("error", err))
			continue
		}
		version, _ := strconv.Atoi(m[2])
		out = append(out, BackupFile{
			Path:          filepath.Join(d.backupDir(), e.Name()),
			TakenAt:       takenAt,
			SchemaVersion: version,
			Kind:          BackupKind(m[3]),
		})
	}
	slices.SortFunc(out, func(a, b BackupFile) int { return a.TakenAt.Compare(b.TakenAt) })
	return out, nil
}

// PurgeBackups removes backups older than the retention. The newest
// migration backup is always kept, it is the way back from the last schema
// change.
func (d *Database) PurgeBackups(ctx context.Context, retentionDays int) (int, error) {
	if retentionDays < 1 {
		return 0, nil
	}
	backups, err := d.Backups()
	if err != nil {
		return 0, err
	}

	keep := ""
	for _, b := range backups {
		if b.Kind == BackupMigration {
			keep = b.Path
		}
	}

	cutoff := d.retentionCutoff(retentionDays)
	removed := 0
	for _, b := range backups {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if !b.TakenAt.Before(cutoff) || b.Path == keep {
			continue
		}
		if err := os.Remove(b.Path); err != nil {
			return removed, fmt.Errorf("removing backup %s: %w", b.Path, err)
		}
		removed++
	}

	d.logger.Info("backup purge complete", slog.Int("removed", removed), slog.Int("kept", len(backups)-removed))
	return removed, nil
}
