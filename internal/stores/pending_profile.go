package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	pendingProfileRecordVersion1 = 1
)

var (
	ErrPendingProfileNotFound = errors.New("pending profile not found")
	ErrPendingProfileBackend  = errors.New("pending profile backend unavailable")
)

// PendingProfileRecord bridges sign-up submission and email confirmation:
// the non-secret profile fields held until the confirmation challenge
// succeeds and the record is promoted to a persisted profile. The TTL on the
// Redis key is the eviction policy for sign-ups that are never confirmed.
type PendingProfileRecord struct {
	Email       string
	FirstName   string
	LastName    string
	DateOfBirth string
	CreatedAt   int64
}

type PendingProfileStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewPendingProfileStore(redisClient redis.UniversalClient, prefix string) *PendingProfileStore {
	if prefix == "" {
		prefix = "pp"
	}
	return &PendingProfileStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *PendingProfileStore) key(identityID string) string {
	return s.prefix + ":" + identityID
}

func (s *PendingProfileStore) Save(
	ctx context.Context,
	identityID string,
	record *PendingProfileRecord,
	ttl time.Duration,
) error {
	encoded, err := encodePendingProfileRecord(record)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(identityID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrPendingProfileBackend, err)
	}
	return nil
}

func (s *PendingProfileStore) Get(ctx context.Context, identityID string) (*PendingProfileRecord, error) {
	data, err := s.redis.Get(ctx, s.key(identityID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrPendingProfileNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrPendingProfileBackend, err)
	}
	return decodePendingProfileRecord(data)
}

func (s *PendingProfileStore) Delete(ctx context.Context, identityID string) (bool, error) {
	n, err := s.redis.Del(ctx, s.key(identityID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrPendingProfileBackend, err)
	}
	return n > 0, nil
}

func encodePendingProfileRecord(record *PendingProfileRecord) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(pendingProfileRecordVersion1)

	if err := binary.Write(&buf, binary.BigEndian, record.CreatedAt); err != nil {
		return nil, err
	}
	for _, field := range []string{record.Email, record.FirstName, record.LastName, record.DateOfBirth} {
		if len(field) > 65535 {
			return nil, errors.New("pending profile field length exceeded")
		}
		if err := binary.Write(&buf, binary.BigEndian, uint16(len(field))); err != nil {
			return nil, err
		}
		buf.WriteString(field)
	}

	return buf.Bytes(), nil
}

func decodePendingProfileRecord(data []byte) (*PendingProfileRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != pendingProfileRecordVersion1 {
		return nil, errors.New("invalid pending profile record version")
	}

	record := &PendingProfileRecord{}
	if err := binary.Read(reader, binary.BigEndian, &record.CreatedAt); err != nil {
		return nil, err
	}
	for _, target := range []*string{&record.Email, &record.FirstName, &record.LastName, &record.DateOfBirth} {
		var fieldLen uint16
		if err := binary.Read(reader, binary.BigEndian, &fieldLen); err != nil {
			return nil, err
		}
		field := make([]byte, fieldLen)
		if _, err := io.ReadFull(reader, field); err != nil {
			return nil, err
		}
		*target = string(field)
	}

	return record, nil
}
