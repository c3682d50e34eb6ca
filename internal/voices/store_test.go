package voices

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/voxdesk/voxdesk/internal/audio"
)

func writeClip(t *testing.T, path string, seconds float64, rate int, amp float64) string {
	t.Helper()
	n := int(seconds * float64(rate))
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = float32(amp * math.Sin(2*math.Pi*220*float64(i)/float64(rate)))
	}
	if err := audio.WriteWAVFile(path, samples, rate); err != nil {
		t.Fatalf("write clip %s: %v", path, err)
	}
	return path
}

func newTestStore(t *testing.T, maxVoices int) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "voices"), maxVoices, nil)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return s, dir
}

func TestValidateRejectsShortClip(t *testing.T) {
	s, dir := newTestStore(t, 10)
	clip := writeClip(t, filepath.Join(dir, "short.wav"), 5, 16000, 0.5)

	ok, reason := s.Validate(clip)
	if ok {
		t.Fatalf("Validate(5s clip) = true, want false")
	}
	if !strings.Contains(reason, "too short") {
		t.Fatalf("reason = %q, want mention of too short", reason)
	}
}

func TestValidateRejectsLongClip(t *testing.T) {
	s, dir := newTestStore(t, 10)
	clip := writeClip(t, filepath.Join(dir, "long.wav"), 25, 16000, 0.5)

	ok, reason := s.Validate(clip)
	if ok || !strings.Contains(reason, "too long") {
		t.Fatalf("Validate(25s clip) = (%v, %q), want too-long rejection", ok, reason)
	}
}

func TestValidateRejectsSilence(t *testing.T) {
	s, dir := newTestStore(t, 10)
	clip := writeClip(t, filepath.Join(dir, "quiet.wav"), 10, 16000, 0.001)

	ok, reason := s.Validate(clip)
	if ok || !strings.Contains(reason, "silence") {
		t.Fatalf("Validate(silent clip) = (%v, %q), want silence rejection", ok, reason)
	}
}

func TestValidateRejectsLowSampleRate(t *testing.T) {
	s, dir := newTestStore(t, 10)
	clip := writeClip(t, filepath.Join(dir, "lofi.wav"), 10, 4000, 0.5)

	ok, reason := s.Validate(clip)
	if ok || !strings.Contains(reason, "Sample rate too low") {
		t.Fatalf("Validate(4kHz clip) = (%v, %q), want sample-rate rejection", ok, reason)
	}
}

func TestValidateAcceptsNormalSpeechClip(t *testing.T) {
	s, dir := newTestStore(t, 10)
	clip := writeClip(t, filepath.Join(dir, "good.wav"), 10, 16000, 0.5)

	ok, reason := s.Validate(clip)
	if !ok {
		t.Fatalf("Validate(10s 16kHz clip) = (false, %q), want valid", reason)
	}
}

func TestValidateMissingFile(t *testing.T) {
	s, dir := newTestStore(t, 10)
	ok, reason := s.Validate(filepath.Join(dir, "nope.wav"))
	if ok || reason != "File does not exist" {
		t.Fatalf("Validate(missing) = (%v, %q), want file-not-found", ok, reason)
	}
}

func TestAddVoiceRejectsDefaultName(t *testing.T) {
	s, dir := newTestStore(t, 10)
	clip := writeClip(t, filepath.Join(dir, "good.wav"), 10, 16000, 0.5)

	ok, msg := s.AddVoice(DefaultVoice, clip)
	if ok || !strings.Contains(msg, "reserved") {
		t.Fatalf("AddVoice(Default) = (%v, %q), want reserved-name rejection", ok, msg)
	}

	// Reserved regardless of path validity.
	ok, _ = s.AddVoice(DefaultVoice, filepath.Join(dir, "missing.wav"))
	if ok {
		t.Fatalf("AddVoice(Default, missing) = true, want false")
	}
}

func TestAddVoiceNormalizesAndPersists(t *testing.T) {
	s, dir := newTestStore(t, 10)
	clip := writeClip(t, filepath.Join(dir, "good.wav"), 10, 16000, 0.5)

	ok, msg := s.AddVoice("Narrator", clip)
	if !ok {
		t.Fatalf("AddVoice() = (false, %q), want success", msg)
	}

	path := s.SamplePath("Narrator")
	if path == "" {
		t.Fatalf("SamplePath(Narrator) = \"\", want stored clip path")
	}
	samples, rate, err := audio.DecodeWAVFile(path)
	if err != nil {
		t.Fatalf("decode stored clip: %v", err)
	}
	if rate != StoredSampleRate {
		t.Fatalf("stored rate = %d, want %d", rate, StoredSampleRate)
	}
	gotDur := float64(len(samples)) / float64(rate)
	if math.Abs(gotDur-10) > 0.1 {
		t.Fatalf("stored duration = %.2fs, want about 10s", gotDur)
	}

	info, found := s.Get("Narrator")
	if !found || info.Type != "custom" || info.SampleRate != StoredSampleRate {
		t.Fatalf("Get(Narrator) = (%+v, %v), want custom profile at %d Hz", info, found, StoredSampleRate)
	}

	// A fresh store over the same directory reloads the manifest.
	s2, err := NewStore(filepath.Dir(path), 10, nil)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	if got := s2.List(); len(got) != 2 || got[0] != DefaultVoice || got[1] != "Narrator" {
		t.Fatalf("reloaded List() = %q, want [Default Narrator]", got)
	}
}

func TestAddVoiceDuplicateName(t *testing.T) {
	s, dir := newTestStore(t, 10)
	clip := writeClip(t, filepath.Join(dir, "good.wav"), 10, 16000, 0.5)

	if ok, msg := s.AddVoice("Twin", clip); !ok {
		t.Fatalf("first AddVoice() = (false, %q)", msg)
	}
	ok, msg := s.AddVoice("Twin", clip)
	if ok || !strings.Contains(msg, "already exists") {
		t.Fatalf("duplicate AddVoice() = (%v, %q), want duplicate rejection", ok, msg)
	}
}

func TestAddVoiceCapacity(t *testing.T) {
	s, dir := newTestStore(t, 3)
	clip := writeClip(t, filepath.Join(dir, "good.wav"), 10, 16000, 0.5)

	for i := 0; i < 3; i++ {
		if ok, msg := s.AddVoice(fmt.Sprintf("Voice %d", i), clip); !ok {
			t.Fatalf("AddVoice(%d) = (false, %q)", i, msg)
		}
	}
	ok, msg := s.AddVoice("One Too Many", clip)
	if ok || !strings.Contains(msg, "Maximum 3 voices") {
		t.Fatalf("AddVoice over capacity = (%v, %q), want capacity rejection", ok, msg)
	}
}

func TestAddVoiceInvalidClipLeavesCatalogUntouched(t *testing.T) {
	s, dir := newTestStore(t, 10)
	clip := writeClip(t, filepath.Join(dir, "short.wav"), 3, 16000, 0.5)

	if ok, _ := s.AddVoice("Broken", clip); ok {
		t.Fatalf("AddVoice(short clip) = true, want false")
	}
	if s.Count() != 0 {
		t.Fatalf("Count() = %d after failed add, want 0", s.Count())
	}
	entries, err := os.ReadDir(filepath.Join(dir, "voices"))
	if err != nil {
		t.Fatalf("read voices dir: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".wav") {
			t.Fatalf("failed add left clip %q on disk", e.Name())
		}
	}
}

func TestDeleteVoice(t *testing.T) {
	s, dir := newTestStore(t, 10)
	clip := writeClip(t, filepath.Join(dir, "good.wav"), 10, 16000, 0.5)

	if ok, msg := s.AddVoice("Gone Soon", clip); !ok {
		t.Fatalf("AddVoice() = (false, %q)", msg)
	}
	stored := s.SamplePath("Gone Soon")

	ok, msg := s.DeleteVoice("Gone Soon")
	if !ok {
		t.Fatalf("DeleteVoice() = (false, %q)", msg)
	}
	if _, err := os.Stat(stored); !os.IsNotExist(err) {
		t.Fatalf("stored clip still present after delete: %v", err)
	}
	if _, found := s.Get("Gone Soon"); found {
		t.Fatalf("Get() found profile after delete")
	}
}

func TestDeleteVoiceMissingFileStillProceeds(t *testing.T) {
	s, dir := newTestStore(t, 10)
	clip := writeClip(t, filepath.Join(dir, "good.wav"), 10, 16000, 0.5)

	if ok, msg := s.AddVoice("Orphan", clip); !ok {
		t.Fatalf("AddVoice() = (false, %q)", msg)
	}
	if err := os.Remove(s.SamplePath("Orphan")); err != nil {
		t.Fatalf("remove backing clip: %v", err)
	}

	if ok, msg := s.DeleteVoice("Orphan"); !ok {
		t.Fatalf("DeleteVoice(missing file) = (false, %q), want success", msg)
	}
}

func TestDeleteVoiceRejectsDefault(t *testing.T) {
	s, _ := newTestStore(t, 10)
	if ok, _ := s.DeleteVoice(DefaultVoice); ok {
		t.Fatalf("DeleteVoice(Default) = true, want false")
	}
}

func TestDeleteVoiceUnknown(t *testing.T) {
	s, _ := newTestStore(t, 10)
	ok, msg := s.DeleteVoice("Nobody")
	if ok || !strings.Contains(msg, "not found") {
		t.Fatalf("DeleteVoice(unknown) = (%v, %q), want not-found", ok, msg)
	}
}

func TestListOrderAndDefaultFirst(t *testing.T) {
	s, dir := newTestStore(t, 10)
	clip := writeClip(t, filepath.Join(dir, "good.wav"), 10, 16000, 0.5)

	for _, name := range []string{"Bravo", "Alpha", "Charlie"} {
		if ok, msg := s.AddVoice(name, clip); !ok {
			t.Fatalf("AddVoice(%s) = (false, %q)", name, msg)
		}
	}
	got := s.List()
	want := []string{DefaultVoice, "Bravo", "Alpha", "Charlie"}
	if len(got) != len(want) {
		t.Fatalf("List() = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("List()[%d] = %q, want %q (insertion order)", i, got[i], want[i])
		}
	}
}

func TestCorruptManifestDegradesToEmpty(t *testing.T) {
	dir := t.TempDir()
	voicesDir := filepath.Join(dir, "voices")
	if err := os.MkdirAll(voicesDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(voicesDir, "profiles.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	s, err := NewStore(voicesDir, 10, nil)
	if err != nil {
		t.Fatalf("NewStore() error = %v, want degraded empty catalog", err)
	}
	if s.Count() != 0 {
		t.Fatalf("Count() = %d, want 0", s.Count())
	}
}

func TestSamplePathDefaultAndUnknown(t *testing.T) {
	s, _ := newTestStore(t, 10)
	if got := s.SamplePath(DefaultVoice); got != "" {
		t.Fatalf("SamplePath(Default) = %q, want \"\"", got)
	}
	if got := s.SamplePath("Nobody"); got != "" {
		t.Fatalf("SamplePath(unknown) = %q, want \"\"", got)
	}
}

func TestAddVoiceSanitizedNameCollisionKeepsDistinctClips(t *testing.T) {
	s, dir := newTestStore(t, 10)
	clip := writeClip(t, filepath.Join(dir, "clip.wav"), 9, 24000, 0.5)

	// Both names sanitize to "a"; freeze the clock so the timestamp stems
	// collide too.
	fixed := s.now()
	s.now = func() time.Time { return fixed }

	if ok, msg := s.AddVoice("a!", clip); !ok {
		t.Fatalf("AddVoice(a!) failed: %s", msg)
	}
	if ok, msg := s.AddVoice("a?", clip); !ok {
		t.Fatalf("AddVoice(a?) failed: %s", msg)
	}

	first, second := s.SamplePath("a!"), s.SamplePath("a?")
	if first == second {
		t.Fatalf("both voices share clip %q", first)
	}
	for _, path := range []string{first, second} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("stored clip %q missing: %v", path, err)
		}
	}

	// Deleting one voice must not touch the other's audio.
	if ok, msg := s.DeleteVoice("a!"); !ok {
		t.Fatalf("DeleteVoice(a!) failed: %s", msg)
	}
	if _, err := os.Stat(second); err != nil {
		t.Fatalf("surviving voice's clip %q missing after delete: %v", second, err)
	}
}
