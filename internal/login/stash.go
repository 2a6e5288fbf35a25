package login

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mr-tron/base58"

	"github.com/AlexZinkM/abc-core/abc"
	"github.com/AlexZinkM/abc-core/internal/model"
	"github.com/AlexZinkM/abc-core/platform"
)

const stashExt = ".json"

// StashStore keeps one LoginStash per username in a folder.
type StashStore struct {
	folder platform.Folder
}

// NewStashStore stores stashes under folder.
func NewStashStore(folder platform.Folder) *StashStore {
	return &StashStore{folder: folder}
}

func stashName(username string) string {
	return base58.Encode([]byte(username)) + stashExt
}

// Load returns the stash for username, or nil if there is none.
func (s *StashStore) Load(ctx context.Context, username string) (*model.LoginStash, error) {
	raw, err := s.folder.File(stashName(username)).GetData(ctx)
	if err != nil {
		if platform.IsNotExist(err) {
			return nil, nil
		}
		return nil, &abc.StorageError{Op: "read login stash", Err: err}
	}

	var stash model.LoginStash
	if err := json.Unmarshal(raw, &stash); err != nil {
		return nil, &abc.StorageError{Op: "decode login stash", Err: err}
	}
	return &stash, nil
}

// Save writes the stash.
func (s *StashStore) Save(ctx context.Context, stash *model.LoginStash) error {
	raw, err := json.MarshalIndent(stash, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal login stash: %w", err)
	}
	if err := s.folder.File(stashName(stash.Username)).SetData(ctx, raw); err != nil {
		return &abc.StorageError{Op: "write login stash", Err: err}
	}
	return nil
}

// Delete removes the stash for username.
func (s *StashStore) Delete(ctx context.Context, username string) error {
	if err := s.folder.File(stashName(username)).Delete(ctx); err != nil {
		return &abc.StorageError{Op: "delete login stash", Err: err}
	}
	return nil
}

// Usernames lists every username with a stash, sorted.
func (s *StashStore) Usernames(ctx context.Context) ([]string, error) {
	files, err := s.folder.ListFiles(ctx)
	if err != nil {
		return nil, &abc.StorageError{Op: "list login stashes", Err: err}
	}

	out := make([]string, 0, len(files))
	for _, name := range files {
		encoded, ok := strings.CutSuffix(name, stashExt)
		if !ok {
			continue
		}
		raw, err := base58.Decode(encoded)
		if err != nil {
			continue
		}
		out = append(out, string(raw))
	}
	sort.Strings(out)
	return out, nil
}
