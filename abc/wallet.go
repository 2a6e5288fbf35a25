package abc

// WalletInfo is the identity and key material of one wallet.
type WalletInfo struct {
	ID   string         `json:"id"`
	Type string         `json:"type"`
	Keys map[string]any `json:"keys"`
}

// WalletInfoFull is a wallet record as stored in the account's wallet list.
type WalletInfoFull struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Keys      map[string]any `json:"keys"`
	AppIDs    []string       `json:"appIds"`
	Archived  bool           `json:"archived"`
	Deleted   bool           `json:"deleted"`
	SortIndex int            `json:"sortIndex"`
}

// Info drops the lifecycle fields.
func (w WalletInfoFull) Info() WalletInfo {
	return WalletInfo{ID: w.ID, Type: w.Type, Keys: w.Keys}
}

// Active reports whether the wallet should have a running engine.
func (w WalletInfoFull) Active() bool {
	return !w.Deleted && !w.Archived
}

// WalletState is a partial update. Nil fields are left unchanged.
type WalletState struct {
	Archived  *bool `json:"archived,omitempty"`
	Deleted   *bool `json:"deleted,omitempty"`
	SortIndex *int  `json:"sortIndex,omitempty"`
}

// Apply merges the patch into w.
func (s WalletState) Apply(w *WalletInfoFull) {
	if s.Archived != nil {
		w.Archived = *s.Archived
	}
	if s.Deleted != nil {
		w.Deleted = *s.Deleted
	}
	if s.SortIndex != nil {
		w.SortIndex = *s.SortIndex
	}
}

// WalletStates maps wallet ids to patches.
type WalletStates map[string]WalletState

// Bool and Int build WalletState fields inline.
func Bool(v bool) *bool { return &v }

func Int(v int) *int { return &v }
