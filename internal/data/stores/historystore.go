package stores

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/colonyops/kiln/internal/core/vfs"
	"github.com/colonyops/kiln/internal/data/db"
)

// TreeVersion is one published snapshot of a workspace tree.
type TreeVersion struct {
	WorkspaceID string    `json:"workspaceId"`
	Version     int64     `json:"version"`
	Reason      string    `json:"reason"`
	TaskID      string    `json:"taskId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	// Tree is nil for rows returned by List.
	Tree *vfs.Tree `json:"tree,omitempty"`
}

// HistoryStore keeps published tree versions so a workspace can be inspected
// or rolled back.
type HistoryStore struct {
	db *db.DB
}

func NewHistoryStore(db *db.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// Record stores v. Recording the same workspace version twice fails.
func (s *HistoryStore) Record(ctx context.Context, v TreeVersion) error {
	tree := v.Tree
	if tree == nil {
		tree = vfs.New()
	}
	data, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("marshal tree: %w", err)
	}

	createdAt := v.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = s.db.Conn().ExecContext(ctx, `
		INSERT INTO tree_versions (workspace_id, version, tree, reason, task_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, v.WorkspaceID, v.Version, string(data), v.Reason, v.TaskID, createdAt.UnixNano())
	if err != nil {
		return fmt.Errorf("record version %d of %s: %w", v.Version, v.WorkspaceID, err)
	}
	return nil
}

// List returns the recorded versions of a workspace, newest first, without
// their trees.
func (s *HistoryStore) List(ctx context.Context, workspaceID string) ([]TreeVersion, error) {
	rows, err := s.db.Conn().QueryContext(ctx, `
		SELECT version, reason, task_id, created_at
		FROM tree_versions
		WHERE workspace_id = ?
		ORDER BY version DESC
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list versions of %s: %w", workspaceID, err)
	}
	defer func() { _ = rows.Close() }()

	versions := []TreeVersion{}
	for rows.Next() {
		v := TreeVersion{WorkspaceID: workspaceID}
		var createdAt int64
		if err := rows.Scan(&v.Version, &v.Reason, &v.TaskID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		v.CreatedAt = time.Unix(0, createdAt)
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// Get loads a single version including its tree.
// Returns an error wrapping sql.ErrNoRows if it was never recorded.
func (s *HistoryStore) Get(ctx context.Context, workspaceID string, version int64) (TreeVersion, error) {
	row := s.db.Conn().QueryRowContext(ctx, `
		SELECT version, reason, task_id, created_at, tree
		FROM tree_versions
		WHERE workspace_id = ? AND version = ?
	`, workspaceID, version)
	return scanVersion(workspaceID, row)
}

// Latest loads the highest recorded version of a workspace.
// Returns an error wrapping sql.ErrNoRows if nothing was recorded.
func (s *HistoryStore) Latest(ctx context.Context, workspaceID string) (TreeVersion, error) {
	row := s.db.Conn().QueryRowContext(ctx, `
		SELECT version, reason, task_id, created_at, tree
		FROM tree_versions
		WHERE workspace_id = ?
		ORDER BY version DESC
		LIMIT 1
	`, workspaceID)
	return scanVersion(workspaceID, row)
}

// Prune deletes all but the newest keep versions of a workspace and returns
// how many rows were removed. keep <= 0 keeps everything.
func (s *HistoryStore) Prune(ctx context.Context, workspaceID string, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}

	res, err := s.db.Conn().ExecContext(ctx, `
		DELETE FROM tree_versions
		WHERE workspace_id = ? AND version NOT IN (
			SELECT version FROM tree_versions
			WHERE workspace_id = ?
			ORDER BY version DESC
			LIMIT ?
		)
	`, workspaceID, workspaceID, keep)
	if err != nil {
		return 0, fmt.Errorf("prune versions of %s: %w", workspaceID, err)
	}
	return res.RowsAffected()
}

// Workspaces returns the ids of every workspace with recorded versions.
func (s *HistoryStore) Workspaces(ctx context.Context) ([]string, error) {
	rows, err := s.db.Conn().QueryContext(ctx, "SELECT DISTINCT workspace_id FROM tree_versions ORDER BY workspace_id")
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan workspace id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteWorkspace removes every version of a workspace.
func (s *HistoryStore) DeleteWorkspace(ctx context.Context, workspaceID string) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "DELETE FROM tree_versions WHERE workspace_id = ?", workspaceID)
		if err != nil {
			return fmt.Errorf("delete versions of %s: %w", workspaceID, err)
		}
		return nil
	})
}

func scanVersion(workspaceID string, row *sql.Row) (TreeVersion, error) {
	v := TreeVersion{WorkspaceID: workspaceID}
	var (
		createdAt int64
		data      string
	)
	if err := row.Scan(&v.Version, &v.Reason, &v.TaskID, &createdAt, &data); err != nil {
		return TreeVersion{}, fmt.Errorf("load version of %s: %w", workspaceID, err)
	}
	v.CreatedAt = time.Unix(0, createdAt)

	tree := vfs.New()
	if err := json.Unmarshal([]byte(data), tree); err != nil {
		return TreeVersion{}, fmt.Errorf("decode tree of %s@%d: %w", workspaceID, v.Version, err)
	}
	v.Tree = tree
	return v, nil
}
