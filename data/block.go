package data

import "time"

// LockUnclaimed is the expiry sentinel of a lock that nobody holds.
const LockUnclaimed int64 = -1

// BlockOptions controls how a block is created.
type BlockOptions struct {
	// Encrypted marks the payload for at-rest encryption by the backend.
	Encrypted bool `json:"encrypted" yaml:"encrypted"`
	// Strict fails with ErrBlockAlreadyExists instead of reusing an existing block.
	Strict bool `json:"strict" yaml:"strict"`
	// Recursive creates missing ancestor collections.
	Recursive bool `json:"recursive" yaml:"recursive"`
}

// DefaultBlockOptions returns the options used when a caller passes none.
func DefaultBlockOptions() BlockOptions {
	return BlockOptions{
		Encrypted: true,
		Strict:    false,
		Recursive: true,
	}
}

// LockState is the claim record living alongside a block.
type LockState struct {
	Holder    string `json:"lock_holder"`
	ExpiresAt int64  `json:"lock_expires_at"` // unix milliseconds or LockUnclaimed
}

// UnclaimedLock returns the lock state of a free block.
func UnclaimedLock() LockState {
	return LockState{Holder: "", ExpiresAt: LockUnclaimed}
}

// IsHeld reports whether the lock is claimed and its lease has not passed at now.
func (ls LockState) IsHeld(now time.Time) bool {
	return ls.ExpiresAt > now.UnixMilli()
}

// IsFree reports whether a claim at now would succeed.
func (ls LockState) IsFree(now time.Time) bool {
	return !ls.IsHeld(now)
}

// BlockInfo describes a stored block without its document.
type BlockInfo struct {
	Path      string    `json:"path"`
	Encrypted bool      `json:"encrypted"`
	Lock      LockState `json:"lock"`
}
