// Package statestore implements durable persistence of the Stack, the sync
// state machine, and branch-tip backups under the VCS metadata directory
// (spec §4.3, on-disk shapes in §6.1).
//
// Grounded on av's internal/git/state_file.go (JSON state files living
// alongside the git directory) generalized with atomic temp-then-rename
// writes and strict unknown-field rejection on load, since a corrupted or
// partially-written state file must never be silently accepted.
package statestore

import (
	"bytes"
	"encoding/json"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rung-dev/rung/internal/branchname"
	"github.com/rung-dev/rung/internal/gitrepo"
	"github.com/rung-dev/rung/internal/rerrors"
	"github.com/rung-dev/rung/internal/stack"
)

const (
	stackFileName = "stack.json"
	syncFileName  = "sync.json"
	backupsDir    = "backups"
	dirPerm       = 0o755
	filePerm      = 0o644
)

// Store is the StateStore: all of its on-disk state lives under dir, which
// is normally <git-common-dir>/rung.
type Store struct {
	dir string
}

// New returns a Store rooted at dir. It does not touch the filesystem; call
// Init to create the directory and an empty stack.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the root directory this Store is scoped to.
func (s *Store) Dir() string { return s.dir }

func (s *Store) stackPath() string   { return filepath.Join(s.dir, stackFileName) }
func (s *Store) syncPath() string    { return filepath.Join(s.dir, syncFileName) }
func (s *Store) backupsPath() string { return filepath.Join(s.dir, backupsDir) }
func (s *Store) backupPath(id string) string {
	return filepath.Join(s.backupsPath(), id+".json")
}

// Init creates the store directory and an empty stack.json if none already
// exists. Idempotent (spec §4.3).
func (s *Store) Init() error {
	if err := os.MkdirAll(s.backupsPath(), dirPerm); err != nil {
		return rerrors.StateIo{Path: s.dir, Err: err}
	}
	if s.IsInitialized() {
		return nil
	}
	return s.SaveStack(stack.New())
}

// IsInitialized reports whether stack.json exists.
func (s *Store) IsInitialized() bool {
	_, err := os.Stat(s.stackPath())
	return err == nil
}

// writeAtomic writes data to path by first writing to a temp file in the
// same directory and renaming it into place, so a crash mid-write never
// leaves a partially-written file observable at path (spec §8, "Atomic
// state").
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once the rename below succeeds

	if err := os.Chmod(tmpName, filePerm); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// readJSON reads path and decodes it into v, rejecting unknown fields so a
// corrupt or future-versioned file is never silently truncated of data.
func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return rerrors.StateIo{Path: path, Err: err}
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return rerrors.StateCorrupted{Path: path, Reason: err.Error()}
	}
	return nil
}

// LoadStack reads and validates stack.json.
func (s *Store) LoadStack() (*stack.Stack, error) {
	if !s.IsInitialized() {
		return nil, rerrors.ErrNotInitialized
	}
	data, err := os.ReadFile(s.stackPath())
	if err != nil {
		return nil, rerrors.StateIo{Path: s.stackPath(), Err: err}
	}
	st := stack.New()
	if err := st.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return st, nil
}

// SaveStack atomically overwrites stack.json with st.
func (s *Store) SaveStack(st *stack.Stack) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return rerrors.StateSerialization{Path: s.stackPath(), Err: err}
	}
	if err := os.MkdirAll(s.dir, dirPerm); err != nil {
		return rerrors.StateIo{Path: s.dir, Err: err}
	}
	if err := writeAtomic(s.stackPath(), data); err != nil {
		return rerrors.StateIo{Path: s.stackPath(), Err: err}
	}
	return nil
}

// jsonSyncState is the on-disk shape of sync.json (spec §6.1).
type jsonSyncState struct {
	BackupId  string   `json:"backup_id"`
	Completed []string `json:"completed"`
	Current   *string  `json:"current"`
	Remaining []string `json:"remaining"`
}

// SyncState is the in-progress sync marker (spec §3). Present on disk
// exactly when a sync is mid-flight.
type SyncState struct {
	BackupId  string
	Completed []branchname.BranchName
	Current   *branchname.BranchName
	Remaining []branchname.BranchName
}

func toJSONNames(names []branchname.BranchName) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = n.String()
	}
	return out
}

func fromJSONNames(ss []string) ([]branchname.BranchName, error) {
	out := make([]branchname.BranchName, len(ss))
	for i, s := range ss {
		n, err := branchname.New(s)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

// IsSyncInProgress reports whether sync.json exists (spec §4.3).
func (s *Store) IsSyncInProgress() bool {
	_, err := os.Stat(s.syncPath())
	return err == nil
}

// LoadSyncState reads and validates sync.json. Returns rerrors.ErrNoSyncInProgress
// if no sync is in progress.
func (s *Store) LoadSyncState() (SyncState, error) {
	if !s.IsSyncInProgress() {
		return SyncState{}, rerrors.ErrNoSyncInProgress
	}
	var js jsonSyncState
	if err := readJSON(s.syncPath(), &js); err != nil {
		return SyncState{}, err
	}
	completed, err := fromJSONNames(js.Completed)
	if err != nil {
		return SyncState{}, err
	}
	remaining, err := fromJSONNames(js.Remaining)
	if err != nil {
		return SyncState{}, err
	}
	var current *branchname.BranchName
	if js.Current != nil {
		c, err := branchname.New(*js.Current)
		if err != nil {
			return SyncState{}, err
		}
		current = &c
	}
	return SyncState{
		BackupId:  js.BackupId,
		Completed: completed,
		Current:   current,
		Remaining: remaining,
	}, nil
}

// SaveSyncState atomically overwrites sync.json with ss.
func (s *Store) SaveSyncState(ss SyncState) error {
	js := jsonSyncState{
		BackupId:  ss.BackupId,
		Completed: toJSONNames(ss.Completed),
		Remaining: toJSONNames(ss.Remaining),
	}
	if ss.Current != nil {
		c := ss.Current.String()
		js.Current = &c
	}
	data, err := json.MarshalIndent(js, "", "  ")
	if err != nil {
		return rerrors.StateSerialization{Path: s.syncPath(), Err: err}
	}
	if err := os.MkdirAll(s.dir, dirPerm); err != nil {
		return rerrors.StateIo{Path: s.dir, Err: err}
	}
	if err := writeAtomic(s.syncPath(), data); err != nil {
		return rerrors.StateIo{Path: s.syncPath(), Err: err}
	}
	return nil
}

// ClearSyncState removes sync.json, marking the sync as no longer in
// progress. A no-op if sync.json does not exist.
func (s *Store) ClearSyncState() error {
	if err := os.Remove(s.syncPath()); err != nil && !os.IsNotExist(err) {
		return rerrors.StateIo{Path: s.syncPath(), Err: err}
	}
	return nil
}

// BackupEntry is a single (branch, pre-sync tip) pair recorded in a Backup.
type BackupEntry struct {
	Branch branchname.BranchName
	Commit gitrepo.CommitId
}

const idRandBytes = 4

// newBackupId returns a lexicographically sortable id: a UTC timestamp with
// second resolution followed by a short random suffix disambiguating ids
// minted within the same second (spec §4.3).
func newBackupId(now time.Time) string {
	suffix := make([]byte, idRandBytes)
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	for i := range suffix {
		suffix[i] = alphabet[rand.Intn(len(alphabet))]
	}
	return now.UTC().Format("20060102T150405") + "-" + string(suffix)
}

// CreateBackup writes a new backup file containing entries and returns its
// id. now is injected so callers control the timestamp part of the id; the
// random suffix is not deterministic.
func (s *Store) CreateBackup(now time.Time, entries []BackupEntry) (string, error) {
	id := newBackupId(now)
	pairs := make([][2]string, len(entries))
	for i, e := range entries {
		pairs[i] = [2]string{e.Branch.String(), string(e.Commit)}
	}
	data, err := json.MarshalIndent(pairs, "", "  ")
	if err != nil {
		return "", rerrors.StateSerialization{Path: s.backupPath(id), Err: err}
	}
	if err := os.MkdirAll(s.backupsPath(), dirPerm); err != nil {
		return "", rerrors.StateIo{Path: s.backupsPath(), Err: err}
	}
	if err := writeAtomic(s.backupPath(id), data); err != nil {
		return "", rerrors.StateIo{Path: s.backupPath(id), Err: err}
	}
	return id, nil
}

// LoadBackup reads the backup with the given id.
func (s *Store) LoadBackup(id string) ([]BackupEntry, error) {
	path := s.backupPath(id)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, rerrors.ErrNoBackup
		}
		return nil, rerrors.StateIo{Path: path, Err: err}
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var pairs [][2]string
	if err := dec.Decode(&pairs); err != nil {
		return nil, rerrors.StateCorrupted{Path: path, Reason: err.Error()}
	}
	entries := make([]BackupEntry, len(pairs))
	for i, p := range pairs {
		name, err := branchname.New(p[0])
		if err != nil {
			return nil, rerrors.StateCorrupted{Path: path, Reason: err.Error()}
		}
		entries[i] = BackupEntry{Branch: name, Commit: gitrepo.CommitId(p[1])}
	}
	return entries, nil
}

// DeleteBackup removes the backup with the given id. A no-op if it does not
// exist.
func (s *Store) DeleteBackup(id string) error {
	path := s.backupPath(id)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return rerrors.StateIo{Path: path, Err: err}
	}
	return nil
}

// LatestBackup returns the id of the most recently created backup (the
// lexicographically greatest, since ids are sortable by construction), or
// rerrors.ErrNoBackup if none exist.
func (s *Store) LatestBackup() (string, error) {
	entries, err := os.ReadDir(s.backupsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return "", rerrors.ErrNoBackup
		}
		return "", rerrors.StateIo{Path: s.backupsPath(), Err: err}
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		const ext = ".json"
		if filepath.Ext(name) != ext {
			continue
		}
		ids = append(ids, name[:len(name)-len(ext)])
	}
	if len(ids) == 0 {
		return "", rerrors.ErrNoBackup
	}
	sort.Strings(ids)
	return ids[len(ids)-1], nil
}

// BackupTime parses the creation timestamp embedded in a backup id minted
// by newBackupId. Returns an error if id was not produced by this package.
func BackupTime(id string) (time.Time, error) {
	const layout = "20060102T150405"
	if len(id) < len(layout) {
		return time.Time{}, rerrors.StateCorrupted{Path: id, Reason: "backup id too short to contain a timestamp"}
	}
	t, err := time.Parse(layout, id[:len(layout)])
	if err != nil {
		return time.Time{}, rerrors.StateCorrupted{Path: id, Reason: err.Error()}
	}
	return t.UTC(), nil
}
