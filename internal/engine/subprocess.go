package engine

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/voxdesk/voxdesk/internal/audio"
)

// SubprocessLoader launches the Python model worker and speaks
// line-delimited JSON over its stdio. One request is in flight at a time;
// the worker owns the GPU-resident weights, so killing the process is the
// eviction mechanism.
type SubprocessLoader struct {
	// Command is the worker argv, e.g. ["python", "-u", "worker.py"].
	Command []string
	// LoadTimeout bounds the initial weight load. Zero means 120s.
	LoadTimeout time.Duration
}

type workerRequest struct {
	ID              string  `json:"id"`
	Op              string  `json:"op"`
	Device          string  `json:"device,omitempty"`
	Text            string  `json:"text,omitempty"`
	Exaggeration    float64 `json:"exaggeration,omitempty"`
	CFGWeight       float64 `json:"cfg_weight,omitempty"`
	VoicePromptPath string  `json:"voice_prompt_path,omitempty"`
}

type workerResponse struct {
	ID          string `json:"id"`
	OK          bool   `json:"ok"`
	SampleRate  int    `json:"sample_rate"`
	AudioBase64 string `json:"audio_base64"`
	Error       string `json:"error"`
}

// Load starts the worker process and performs the load handshake. The
// returned model is ready to generate; a failed handshake kills the
// process and reports the worker's stderr.
func (l *SubprocessLoader) Load(ctx context.Context, device string) (Model, error) {
	if len(l.Command) == 0 {
		return nil, fmt.Errorf("no model worker command configured")
	}

	cmd := exec.Command(l.Command[0], l.Command[1:]...)
	cmd.Env = os.Environ()
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	m := &subprocessModel{cmd: cmd, stdin: stdin, dec: json.NewDecoder(stdout)}

	timeout := l.LoadTimeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	loadCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := m.roundTrip(loadCtx, workerRequest{Op: "load", Device: device})
	if err != nil {
		_ = m.Close()
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("model worker failed to load: %s", msg)
	}
	if resp.SampleRate <= 0 {
		_ = m.Close()
		return nil, fmt.Errorf("model worker reported sample rate %d", resp.SampleRate)
	}
	m.sampleRate = resp.SampleRate
	return m, nil
}

type subprocessModel struct {
	mu         sync.Mutex
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	dec        *json.Decoder
	sampleRate int
	closed     bool
	seq        int
}

func (m *subprocessModel) SampleRate() int { return m.sampleRate }

func (m *subprocessModel) Generate(ctx context.Context, text string, opts GenerateOpts) ([]float32, error) {
	resp, err := m.roundTrip(ctx, workerRequest{
		Op:              "generate",
		Text:            text,
		Exaggeration:    opts.Exaggeration,
		CFGWeight:       opts.CFGWeight,
		VoicePromptPath: opts.VoicePromptPath,
	})
	if err != nil {
		return nil, err
	}

	raw, err := base64.StdEncoding.DecodeString(resp.AudioBase64)
	if err != nil {
		return nil, fmt.Errorf("decode audio_base64: %w", err)
	}
	samples, rate, err := audio.DecodeWAV(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode worker audio: %w", err)
	}
	if rate != m.sampleRate {
		samples = audio.Resample(samples, rate, m.sampleRate)
	}
	return samples, nil
}

// roundTrip writes one request line and decodes exactly one response.
// The worker is single-flight, guarded by mu. If ctx expires before the
// worker answers, the process is killed: a worker with an orphaned
// response in its pipe can never be trusted with another request, and a
// hung worker must not wedge the residency lock above us.
func (m *subprocessModel) roundTrip(ctx context.Context, req workerRequest) (*workerResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, fmt.Errorf("model worker closed")
	}

	m.seq++
	req.ID = fmt.Sprintf("req-%d", m.seq)

	b, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	b = append(b, '\n')
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := m.stdin.Write(b); err != nil {
		return nil, err
	}

	type decoded struct {
		resp workerResponse
		err  error
	}
	ch := make(chan decoded, 1)
	go func() {
		var resp workerResponse
		err := m.dec.Decode(&resp)
		ch <- decoded{resp: resp, err: err}
	}()

	var resp workerResponse
	select {
	case <-ctx.Done():
		m.terminateLocked()
		return nil, ctx.Err()
	case d := <-ch:
		if d.err != nil {
			return nil, d.err
		}
		resp = d.resp
	}

	if resp.ID != req.ID {
		return nil, fmt.Errorf("model worker out-of-sync (got %q, expected %q)", resp.ID, req.ID)
	}
	if !resp.OK {
		msg := strings.TrimSpace(resp.Error)
		if msg == "" {
			msg = "unknown worker error"
		}
		return nil, fmt.Errorf("%s", msg)
	}
	return &resp, nil
}

// Close stops the worker process, which releases the model's device
// memory. A stuck worker gets killed after a short grace period.
func (m *subprocessModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.terminateLocked()
	return nil
}

// terminateLocked stops the worker: interrupt first, kill after a short
// grace period. Idempotent. Caller holds m.mu.
func (m *subprocessModel) terminateLocked() {
	if m.closed {
		return
	}
	m.closed = true
	stdin := m.stdin
	cmd := m.cmd
	m.stdin = nil
	m.cmd = nil

	if stdin != nil {
		_ = stdin.Close()
	}
	if cmd == nil || cmd.Process == nil {
		return
	}

	_ = cmd.Process.Signal(os.Interrupt)
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-time.After(1200 * time.Millisecond):
		_ = cmd.Process.Kill()
		<-done
	case <-done:
	}
}
