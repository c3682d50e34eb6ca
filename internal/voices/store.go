// Package voices maintains the catalog of user-supplied voice clones:
// validated reference clips, normalized to one canonical format, persisted
// behind a JSON manifest so the catalog survives restarts.
package voices

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/voxdesk/voxdesk/internal/audio"
	"github.com/voxdesk/voxdesk/internal/observability"
)

// DefaultVoice is the reserved name of the model's built-in voice. It is
// never a catalog entry and can never be created, deleted, or overwritten.
const DefaultVoice = "Default"

// StoredSampleRate is the canonical rate reference clips are normalized to.
const StoredSampleRate = 48000

// Validation bounds for reference clips.
const (
	MinClipSeconds = 7.0
	MaxClipSeconds = 20.0
	MinSampleRate  = 8000
	// Clips with RMS energy below this on a [-1,1] signal are treated
	// as silence.
	SilenceRMS = 0.01
)

// Profile is one stored voice clone. Field names match the manifest
// format on disk.
type Profile struct {
	Name        string  `json:"name"`
	FilePath    string  `json:"file_path"`
	CreatedDate string  `json:"created_date"`
	Duration    float64 `json:"duration"`
	SampleRate  int     `json:"sample_rate"`
}

// Info describes a voice to API consumers, covering both the built-in
// default and custom profiles.
type Info struct {
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Description string  `json:"description,omitempty"`
	Duration    float64 `json:"duration,omitempty"`
	SampleRate  int     `json:"sample_rate,omitempty"`
	CreatedDate string  `json:"created_date,omitempty"`
}

// StorageError reports a manifest or audio file I/O failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("voices: %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

type manifest struct {
	Voices []Profile `json:"voices"`
}

const manifestName = "profiles.json"

// Store holds the voice catalog. Mutations are serialized and flushed to
// the manifest before they are considered complete; reads take a shared
// lock and return copies.
type Store struct {
	dir          string
	manifestPath string
	maxVoices    int
	metrics      *observability.Metrics

	mu       sync.RWMutex
	profiles map[string]Profile
	order    []string

	now func() time.Time
}

// NewStore opens (or creates) the voices directory and loads the
// manifest. An unreadable manifest degrades to an empty catalog rather
// than failing startup. metrics may be nil.
func NewStore(dir string, maxVoices int, metrics *observability.Metrics) (*Store, error) {
	if maxVoices <= 0 {
		maxVoices = 10
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &StorageError{Op: "create voices dir", Err: err}
	}

	s := &Store{
		dir:          dir,
		manifestPath: filepath.Join(dir, manifestName),
		maxVoices:    maxVoices,
		metrics:      metrics,
		profiles:     make(map[string]Profile),
		now:          time.Now,
	}
	s.loadManifest()
	s.updateGauge()
	return s, nil
}

func (s *Store) loadManifest() {
	data, err := os.ReadFile(s.manifestPath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("voices: could not read manifest, starting with empty catalog: %v", err)
		}
		return
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		log.Printf("voices: could not parse manifest, starting with empty catalog: %v", err)
		return
	}
	for _, p := range m.Voices {
		if p.Name == "" || p.Name == DefaultVoice {
			continue
		}
		if _, dup := s.profiles[p.Name]; dup {
			continue
		}
		s.profiles[p.Name] = p
		s.order = append(s.order, p.Name)
	}
}

// flushManifestLocked persists the catalog atomically (tmp file, then
// rename) so a crash leaves either the old or the new manifest, never a
// partial one. Caller holds s.mu.
func (s *Store) flushManifestLocked() error {
	m := manifest{Voices: make([]Profile, 0, len(s.order))}
	for _, name := range s.order {
		m.Voices = append(m.Voices, s.profiles[name])
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return &StorageError{Op: "encode manifest", Err: err}
	}

	tmp := s.manifestPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return &StorageError{Op: "write manifest", Err: err}
	}
	if err := os.Rename(tmp, s.manifestPath); err != nil {
		_ = os.Remove(tmp)
		return &StorageError{Op: "replace manifest", Err: err}
	}
	return nil
}

func (s *Store) updateGauge() {
	if s.metrics == nil {
		return
	}
	s.mu.RLock()
	n := len(s.order)
	s.mu.RUnlock()
	s.metrics.VoiceProfiles.Set(float64(n))
}

// Validate checks whether the clip at path is usable for voice cloning.
// Checks run in a fixed order and the first failure is returned:
// existence/decode, too short, too long, silence, sample rate.
func (s *Store) Validate(path string) (bool, string) {
	if _, err := os.Stat(path); err != nil {
		return false, "File does not exist"
	}
	samples, rate, err := audio.DecodeWAVFile(path)
	if err != nil {
		return false, fmt.Sprintf("Could not process audio file: %v", err)
	}
	return validateClip(samples, rate)
}

func validateClip(samples []float32, rate int) (bool, string) {
	duration := float64(len(samples)) / float64(rate)
	if duration < MinClipSeconds {
		return false, fmt.Sprintf("Audio too short (%.1fs). Minimum %.0f seconds required.", duration, MinClipSeconds)
	}
	if duration > MaxClipSeconds {
		return false, fmt.Sprintf("Audio too long (%.1fs). Maximum %.0f seconds allowed.", duration, MaxClipSeconds)
	}
	if audio.RMS(samples) < SilenceRMS {
		return false, "Audio appears to be mostly silence. Please provide clear speech."
	}
	if rate < MinSampleRate {
		return false, fmt.Sprintf("Sample rate too low (%d Hz). Minimum %d Hz required.", rate, MinSampleRate)
	}
	return true, fmt.Sprintf("Valid audio: %.1fs at %d Hz", duration, rate)
}

// AddVoice validates the source clip, normalizes it to the canonical
// format under the voices directory, and registers the profile. The add
// is atomic: on any failure the catalog and directory are left unchanged.
func (s *Store) AddVoice(name, sourcePath string) (bool, string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return false, "Voice name is required."
	}
	if name == DefaultVoice {
		return false, fmt.Sprintf("The name %q is reserved for the built-in voice.", DefaultVoice)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.order) >= s.maxVoices {
		return false, fmt.Sprintf("Maximum %d voices allowed. Delete a voice first.", s.maxVoices)
	}
	if _, exists := s.profiles[name]; exists {
		return false, fmt.Sprintf("Voice %q already exists. Choose a different name.", name)
	}

	samples, rate, err := audio.DecodeWAVFile(sourcePath)
	if err != nil {
		if _, statErr := os.Stat(sourcePath); statErr != nil {
			return false, "File does not exist"
		}
		return false, fmt.Sprintf("Could not process audio file: %v", err)
	}
	if ok, reason := validateClip(samples, rate); !ok {
		return false, reason
	}

	normalized := audio.Resample(samples, rate, StoredSampleRate)
	target := filepath.Join(s.dir, s.storedFilename(name))
	if err := audio.WriteWAVFile(target, normalized, StoredSampleRate); err != nil {
		_ = os.Remove(target)
		log.Printf("%v", &StorageError{Op: "write voice clip", Err: err})
		return false, fmt.Sprintf("Failed to add voice: %v", err)
	}

	// Record what actually landed on disk, not the source file.
	stored, storedRate, err := audio.DecodeWAVFile(target)
	if err != nil {
		_ = os.Remove(target)
		return false, fmt.Sprintf("Failed to add voice: %v", err)
	}

	profile := Profile{
		Name:        name,
		FilePath:    target,
		CreatedDate: s.now().UTC().Format(time.RFC3339),
		Duration:    float64(len(stored)) / float64(storedRate),
		SampleRate:  storedRate,
	}
	s.profiles[name] = profile
	s.order = append(s.order, name)

	if err := s.flushManifestLocked(); err != nil {
		delete(s.profiles, name)
		s.order = s.order[:len(s.order)-1]
		_ = os.Remove(target)
		log.Printf("%v", err)
		return false, fmt.Sprintf("Failed to add voice: %v", err)
	}

	if s.metrics != nil {
		s.metrics.VoiceProfiles.Set(float64(len(s.order)))
	}
	return true, fmt.Sprintf("Voice %q added (%.1fs)", name, profile.Duration)
}

// storedFilename derives a filesystem-safe name from the voice name plus
// a timestamp. Sanitizing can collapse distinct names onto the same stem
// within one second, so taken filenames get a numeric suffix. Caller
// holds s.mu.
func (s *Store) storedFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == ' ', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	safe := strings.TrimSpace(b.String())
	if safe == "" {
		safe = "voice"
	}

	stem := fmt.Sprintf("%s_%s", safe, s.now().UTC().Format("20060102_150405"))
	candidate := stem + ".wav"
	for i := 1; ; i++ {
		if _, err := os.Stat(filepath.Join(s.dir, candidate)); os.IsNotExist(err) {
			return candidate
		}
		candidate = fmt.Sprintf("%s_%d.wav", stem, i)
	}
}

// DeleteVoice removes a profile and its backing clip. File removal is
// best-effort: a clip already missing from disk does not block deletion.
func (s *Store) DeleteVoice(name string) (bool, string) {
	if name == DefaultVoice {
		return false, "The default voice cannot be deleted."
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	profile, ok := s.profiles[name]
	if !ok {
		return false, fmt.Sprintf("Voice %q not found.", name)
	}

	if err := os.Remove(profile.FilePath); err != nil && !os.IsNotExist(err) {
		log.Printf("voices: remove clip for %q: %v", name, err)
	}

	idx := -1
	for i, n := range s.order {
		if n == name {
			idx = i
			break
		}
	}
	delete(s.profiles, name)
	if idx >= 0 {
		s.order = append(s.order[:idx], s.order[idx+1:]...)
	}

	if err := s.flushManifestLocked(); err != nil {
		// Roll back to the last persisted catalog state.
		s.profiles[name] = profile
		if idx >= 0 {
			s.order = append(s.order[:idx], append([]string{name}, s.order[idx:]...)...)
		} else {
			s.order = append(s.order, name)
		}
		log.Printf("%v", err)
		return false, fmt.Sprintf("Failed to delete voice: %v", err)
	}

	if s.metrics != nil {
		s.metrics.VoiceProfiles.Set(float64(len(s.order)))
	}
	return true, fmt.Sprintf("Voice %q deleted.", name)
}

// List returns all voice names, the built-in default first and custom
// profiles in insertion order.
func (s *Store) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.order)+1)
	out = append(out, DefaultVoice)
	out = append(out, s.order...)
	return out
}

// Get describes one voice. The built-in default gets a sentinel
// description; it never lives in the catalog.
func (s *Store) Get(name string) (Info, bool) {
	if name == DefaultVoice {
		return Info{
			Name:        DefaultVoice,
			Type:        "built-in",
			Description: "High-quality default voice",
		}, true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[name]
	if !ok {
		return Info{}, false
	}
	return Info{
		Name:        p.Name,
		Type:        "custom",
		Duration:    p.Duration,
		SampleRate:  p.SampleRate,
		CreatedDate: p.CreatedDate,
	}, true
}

// SamplePath returns the stored reference clip for a custom voice, or ""
// for the default voice and unknown names.
func (s *Store) SamplePath(name string) string {
	if name == DefaultVoice {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[name]
	if !ok {
		return ""
	}
	return p.FilePath
}

// Count returns the number of custom profiles.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}
