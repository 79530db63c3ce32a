package backend

import (
	"encoding/json"
	"fmt"

	"github.com/mwantia/blockdb/data"
	"github.com/mwantia/blockdb/data/errors"
	"github.com/mwantia/blockdb/extension/encrypt"
)

// Record is the envelope a backend persists for every block.
// Data holds the document JSON, or the base64 ciphertext when Nonce is set.
type Record struct {
	Encrypted     bool            `json:"encrypted"`
	Nonce         []byte          `json:"nonce,omitempty"`
	Data          json.RawMessage `json:"data"`
	LockHolder    string          `json:"lock_holder"`
	LockExpiresAt int64           `json:"lock_expires_at"`
}

// NewRecord returns the envelope of a freshly created, empty block.
func NewRecord(encrypted bool) *Record {
	return &Record{
		Encrypted:     encrypted,
		Data:          json.RawMessage("{}"),
		LockExpiresAt: data.LockUnclaimed,
	}
}

func (r *Record) Lock() data.LockState {
	return data.LockState{
		Holder:    r.LockHolder,
		ExpiresAt: r.LockExpiresAt,
	}
}

func (r *Record) SetLock(lock data.LockState) {
	r.LockHolder = lock.Holder
	r.LockExpiresAt = lock.ExpiresAt
}

func (r *Record) Info(path string) *data.BlockInfo {
	return &data.BlockInfo{
		Path:      path,
		Encrypted: r.Encrypted,
		Lock:      r.Lock(),
	}
}

// Claim applies the compare-and-set rule shared by all backends:
// the claim wins only if the stored lease has passed at now.
func (r *Record) Claim(holder string, now, expiresAt int64) bool {
	if r.LockExpiresAt > now {
		return false
	}

	r.LockHolder = holder
	r.LockExpiresAt = expiresAt
	return true
}

// Release clears the lock if it is still owned by holder.
func (r *Record) Release(holder string) bool {
	if r.LockHolder != holder {
		return false
	}

	r.SetLock(data.UnclaimedLock())
	return true
}

func MarshalRecord(r *Record) ([]byte, error) {
	return json.Marshal(r)
}

func UnmarshalRecord(b []byte) (*Record, error) {
	r := &Record{}
	if err := json.Unmarshal(b, r); err != nil {
		return nil, fmt.Errorf("blockdb: malformed block record: %w", err)
	}

	return r, nil
}

// Codec converts documents into stored payloads and back.
// Without a cipher, blocks flagged as encrypted are stored in plain form.
type Codec struct {
	cipher *encrypt.Cipher
}

func NewCodec(cipher *encrypt.Cipher) *Codec {
	return &Codec{
		cipher: cipher,
	}
}

// CanEncrypt reports whether encrypted blocks are sealed at rest.
func (c *Codec) CanEncrypt() bool {
	return c != nil && c.cipher != nil
}

// Encode returns the nonce and payload stored for doc. The nonce is nil for plain payloads.
func (c *Codec) Encode(path string, doc data.Document, encrypted bool) ([]byte, []byte, error) {
	if doc == nil {
		doc = data.Document{}
	}

	plain, err := json.Marshal(doc)
	if err != nil {
		return nil, nil, fmt.Errorf("blockdb: failed to encode block '%s': %w", path, err)
	}

	if !encrypted || !c.CanEncrypt() {
		return nil, plain, nil
	}

	nonce, sealed, err := c.cipher.Seal(plain, []byte(path))
	if err != nil {
		return nil, nil, errors.EncryptionKey(err, path)
	}

	return nonce, sealed, nil
}

// Decode reverses Encode. An empty payload decodes to an empty document.
func (c *Codec) Decode(path string, nonce []byte, payload []byte) (data.Document, error) {
	if len(nonce) > 0 {
		if !c.CanEncrypt() {
			return nil, errors.EncryptionKey(nil, path)
		}

		plain, err := c.cipher.Open(nonce, payload, []byte(path))
		if err != nil {
			return nil, errors.EncryptionKey(err, path)
		}
		payload = plain
	}

	if len(payload) == 0 {
		return data.Document{}, nil
	}

	doc, err := data.UnmarshalDocument(payload)
	if err != nil {
		return nil, fmt.Errorf("blockdb: failed to decode block '%s': %w", path, err)
	}
	if doc == nil {
		doc = data.Document{}
	}

	return doc, nil
}

// Store encodes doc into the record.
func (c *Codec) Store(r *Record, path string, doc data.Document) error {
	nonce, payload, err := c.Encode(path, doc, r.Encrypted)
	if err != nil {
		return err
	}

	if nonce != nil {
		if payload, err = json.Marshal(payload); err != nil {
			return err
		}
	}

	r.Nonce = nonce
	r.Data = payload
	return nil
}

// Load decodes the document held by the record.
func (c *Codec) Load(r *Record, path string) (data.Document, error) {
	payload := []byte(r.Data)
	if len(r.Nonce) > 0 {
		var sealed []byte
		if err := json.Unmarshal(r.Data, &sealed); err != nil {
			return nil, fmt.Errorf("blockdb: malformed sealed block '%s': %w", path, err)
		}
		payload = sealed
	}

	return c.Decode(path, r.Nonce, payload)
}
