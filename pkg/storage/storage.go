// Package storage provides the on-disk sample store for enrolled identities.
// Each identity owns a directory <root>/<group>/<id> holding grayscale face
// crops; an identity exists exactly when that directory holds at least one
// sample. Samples can optionally be encrypted at rest using NaCl secretbox.
package storage

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/MrCodeEU/faceattend/pkg/logging"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/image/draw"
)

const (
	// NonceSize is the size of the nonce used for encryption
	NonceSize = 24
	// KeySize is the size of the encryption key
	KeySize = 32

	sampleExt    = ".jpg"
	encryptedExt = ".jpg.enc"
	tsLayout     = "20060102_150405"
)

// Identity is a person that can be enrolled and verified.
// DisplayName is supplied by the caller and is not persisted.
type Identity struct {
	ID          string
	DisplayName string
	Group       string
}

// Sample describes one stored face crop.
type Sample struct {
	Path       string
	Seq        int
	CapturedAt time.Time
}

// ErrIdentityNotFound is returned when an identity has no sample directory.
var ErrIdentityNotFound = errors.New("identity not found")

// ErrInvalidIdentity is returned for ids or groups that cannot name a directory.
var ErrInvalidIdentity = errors.New("invalid identity")

// ErrStorageAccess is returned when storage cannot be accessed.
var ErrStorageAccess = errors.New("failed to access storage")

// ErrEncryption is returned when encryption/decryption fails.
var ErrEncryption = errors.New("encryption error")

var sampleName = regexp.MustCompile(`^(.+)_(\d+)_(\d{8}_\d{6})_(\d{3})(?:-[0-9a-f]{8})?$`)

// FileStore implements the sample store on the local filesystem.
type FileStore struct {
	root              string
	encryptionEnabled bool
	encryptionKey     [KeySize]byte
	now               func() time.Time
}

// NewFileStore creates a store rooted at <dataDir>/samples.
func NewFileStore(dataDir string, encryptionEnabled bool) (*FileStore, error) {
	fs := &FileStore{
		root:              filepath.Join(dataDir, "samples"),
		encryptionEnabled: encryptionEnabled,
		now:               time.Now,
	}

	// Derive encryption key from machine-specific information
	if encryptionEnabled {
		key, err := deriveKey()
		if err != nil {
			return nil, fmt.Errorf("failed to derive encryption key: %w", err)
		}
		fs.encryptionKey = key
	}

	if err := os.MkdirAll(fs.root, 0700); err != nil {
		return nil, fmt.Errorf("failed to create samples directory: %w", err)
	}

	return fs, nil
}

// deriveKey derives an encryption key from machine-specific information.
// This ties the encrypted samples to this specific machine.
func deriveKey() ([KeySize]byte, error) {
	var key [KeySize]byte
	var identity strings.Builder

	if machineID, err := os.ReadFile("/etc/machine-id"); err == nil {
		identity.Write(machineID)
	}
	if hostname, err := os.Hostname(); err == nil {
		identity.WriteString(hostname)
	}
	identity.WriteString(strconv.Itoa(os.Getuid()))
	identity.WriteString("faceattend-v1-salt")

	hash := sha256.Sum256([]byte(identity.String()))
	copy(key[:], hash[:])
	return key, nil
}

// Root returns the directory holding all groups.
func (fs *FileStore) Root() string {
	return fs.root
}

// Dir returns the sample directory of an identity.
func (fs *FileStore) Dir(group, id string) string {
	return filepath.Join(fs.root, group, id)
}

func validName(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, `/\`)
}

// ValidateIdentity reports ErrInvalidIdentity when group or id cannot name
// a sample directory.
func ValidateIdentity(group, id string) error {
	if !validName(group) || !validName(id) {
		return fmt.Errorf("%w: group=%q id=%q", ErrInvalidIdentity, group, id)
	}
	return nil
}

// Save persists one face crop for identity and returns its path. The file
// name carries a sequence number and the capture time to millisecond
// precision; a name collision gets a random suffix instead of overwriting.
func (fs *FileStore) Save(identity Identity, face *image.Gray) (string, error) {
	if err := ValidateIdentity(identity.Group, identity.ID); err != nil {
		return "", err
	}
	if face == nil || face.Bounds().Empty() {
		return "", fmt.Errorf("refusing to store empty sample for %s", identity.ID)
	}

	dir := fs.Dir(identity.Group, identity.ID)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorageAccess, err)
	}

	count, err := fs.Count(identity.Group, identity.ID)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, face, imaging.JPEG, imaging.JPEGQuality(95)); err != nil {
		return "", fmt.Errorf("failed to encode sample: %w", err)
	}
	data := buf.Bytes()
	if fs.encryptionEnabled {
		data, err = fs.encrypt(data)
		if err != nil {
			return "", fmt.Errorf("failed to encrypt sample: %w", err)
		}
	}

	ts := fs.now()
	base := fmt.Sprintf("%s_%d_%s_%03d", identity.ID, count+1, ts.Format(tsLayout), ts.Nanosecond()/int(time.Millisecond))

	path := filepath.Join(dir, base+fs.ext())
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if errors.Is(err, os.ErrExist) {
		path = filepath.Join(dir, base+"-"+uuid.New().String()[:8]+fs.ext())
		f, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorageAccess, err)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("failed to write sample: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to write sample: %w", err)
	}

	logging.Debugf("Saved sample %s for %s/%s", filepath.Base(path), identity.Group, identity.ID)
	return path, nil
}

func (fs *FileStore) ext() string {
	if fs.encryptionEnabled {
		return encryptedExt
	}
	return sampleExt
}

// Samples lists the stored samples of an identity sorted by file name.
// An identity without a directory has no samples.
func (fs *FileStore) Samples(group, id string) ([]Sample, error) {
	if err := ValidateIdentity(group, id); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(fs.Dir(group, id))
	if err != nil {
		if os.IsNotExist(err) {
			return []Sample{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageAccess, err)
	}

	samples := make([]Sample, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		var base string
		switch {
		case strings.HasSuffix(name, encryptedExt):
			base = strings.TrimSuffix(name, encryptedExt)
		case strings.HasSuffix(name, sampleExt):
			base = strings.TrimSuffix(name, sampleExt)
		default:
			continue
		}

		sample := Sample{Path: filepath.Join(fs.Dir(group, id), name)}
		if m := sampleName.FindStringSubmatch(base); m != nil {
			sample.Seq, _ = strconv.Atoi(m[2])
			if ts, err := time.ParseInLocation(tsLayout, m[3], time.Local); err == nil {
				ms, _ := strconv.Atoi(m[4])
				sample.CapturedAt = ts.Add(time.Duration(ms) * time.Millisecond)
			}
		}
		samples = append(samples, sample)
	}

	sort.Slice(samples, func(i, j int) bool {
		a, b := samples[i], samples[j]
		if a.Seq != b.Seq {
			return a.Seq < b.Seq
		}
		if !a.CapturedAt.Equal(b.CapturedAt) {
			return a.CapturedAt.Before(b.CapturedAt)
		}
		return a.Path < b.Path
	})
	return samples, nil
}

// Load decodes a stored sample into a grayscale image.
func (fs *FileStore) Load(path string) (*image.Gray, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sample: %w", err)
	}

	if strings.HasSuffix(path, encryptedExt) {
		if !fs.encryptionEnabled {
			return nil, fmt.Errorf("%w: encrypted sample but encryption disabled", ErrEncryption)
		}
		data, err = fs.decrypt(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt sample: %w", err)
		}
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode sample: %w", err)
	}
	return toGray(img), nil
}

// Count returns the number of stored samples of an identity.
func (fs *FileStore) Count(group, id string) (int, error) {
	samples, err := fs.Samples(group, id)
	if err != nil {
		return 0, err
	}
	return len(samples), nil
}

// Exists reports whether the identity has at least one stored sample.
func (fs *FileStore) Exists(group, id string) bool {
	n, err := fs.Count(group, id)
	return err == nil && n > 0
}

// List returns every identity with at least one sample, ordered by group and id.
func (fs *FileStore) List() ([]Identity, error) {
	groups, err := os.ReadDir(fs.root)
	if err != nil {
		if os.IsNotExist(err) {
			return []Identity{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageAccess, err)
	}

	identities := []Identity{}
	for _, g := range groups {
		if !g.IsDir() {
			continue
		}
		ids, err := os.ReadDir(filepath.Join(fs.root, g.Name()))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorageAccess, err)
		}
		for _, id := range ids {
			if id.IsDir() && fs.Exists(g.Name(), id.Name()) {
				identities = append(identities, Identity{ID: id.Name(), Group: g.Name()})
			}
		}
	}
	return identities, nil
}

// Remove deletes every sample of an identity. It is an operator tool; the
// enrollment and verification flows never call it.
func (fs *FileStore) Remove(group, id string) error {
	if err := ValidateIdentity(group, id); err != nil {
		return err
	}
	dir := fs.Dir(group, id)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return ErrIdentityNotFound
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove samples: %w", err)
	}
	logging.Infof("Removed samples for %s/%s", group, id)
	return nil
}

// encrypt encrypts data using NaCl secretbox.
func (fs *FileStore) encrypt(plaintext []byte) ([]byte, error) {
	var nonce [NonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, err
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, &fs.encryptionKey), nil
}

// decrypt decrypts data using NaCl secretbox.
func (fs *FileStore) decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < NonceSize {
		return nil, ErrEncryption
	}

	var nonce [NonceSize]byte
	copy(nonce[:], ciphertext[:NonceSize])

	plaintext, ok := secretbox.Open(nil, ciphertext[NonceSize:], &nonce, &fs.encryptionKey)
	if !ok {
		return nil, ErrEncryption
	}
	return plaintext, nil
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}
