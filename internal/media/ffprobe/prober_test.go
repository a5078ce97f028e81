package ffprobe

import (
	"context"
	"errors"
	"slices"
	"testing"
)

type stubExecutor struct {
	output []byte
	err    error
	binary string
	args   []string
	calls  int
}

func (s *stubExecutor) Output(_ context.Context, binary string, args []string) ([]byte, error) {
	s.calls++
	s.binary = binary
	s.args = append([]string(nil), args...)
	return s.output, s.err
}

func TestProbeLocalPathOmitsHeaders(t *testing.T) {
	stub := &stubExecutor{output: []byte("[STREAM]\ncodec_name=aac\ncodec_type=audio\n[/STREAM]\n")}
	prober := New("/opt/ffprobe", WithExecutor(stub), WithToken("secret"))

	meta := prober.Probe(context.Background(), "/books/a.m4b")
	if meta.Codec != "aac" {
		t.Fatalf("codec = %q", meta.Codec)
	}
	if stub.binary != "/opt/ffprobe" {
		t.Fatalf("binary = %q", stub.binary)
	}
	want := []string{"-v", "error", "-hide_banner", "-show_streams", "-show_format", "-show_chapters", "--", "/books/a.m4b"}
	if !slices.Equal(stub.args, want) {
		t.Fatalf("args = %v, want %v", stub.args, want)
	}
}

func TestProbeRemoteAttachesToken(t *testing.T) {
	stub := &stubExecutor{}
	prober := New("", WithExecutor(stub), WithToken("secret"))

	prober.Probe(context.Background(), "https://server.test/api/books/1/audio")
	if stub.binary != "ffprobe" {
		t.Fatalf("default binary = %q", stub.binary)
	}
	idx := slices.Index(stub.args, "-headers")
	if idx < 0 || stub.args[idx+1] != "Authorization: Bearer secret\r\n" {
		t.Fatalf("expected auth header in %q", stub.args)
	}
	if stub.args[len(stub.args)-1] != "https://server.test/api/books/1/audio" {
		t.Fatalf("target must be last: %v", stub.args)
	}
}

func TestProbeRemoteWithoutToken(t *testing.T) {
	stub := &stubExecutor{}
	New("ffprobe", WithExecutor(stub)).Probe(context.Background(), "http://server.test/a")
	if slices.Contains(stub.args, "-headers") {
		t.Fatalf("no token means no header: %v", stub.args)
	}
}

func TestProbeFailureYieldsDefaults(t *testing.T) {
	stub := &stubExecutor{err: errors.New("exit status 1")}
	meta := New("ffprobe", WithExecutor(stub)).Probe(context.Background(), "/missing.m4b")
	if meta.Codec != UnknownCodec || meta.DurationMS != 0 || meta.Chapters != nil {
		t.Fatalf("expected defaults, got %+v", meta)
	}
}

func TestProbeFailureKeepsPartialOutput(t *testing.T) {
	stub := &stubExecutor{
		output: []byte("[STREAM]\ncodec_name=eac3\ncodec_type=audio\n"),
		err:    errors.New("exit status 1"),
	}
	meta := New("ffprobe", WithExecutor(stub)).Probe(context.Background(), "/truncated.m4b")
	if meta.Codec != "eac3" {
		t.Fatalf("codec = %q, want eac3 from partial report", meta.Codec)
	}
}

func TestInspectReportsIncompleteRun(t *testing.T) {
	stub := &stubExecutor{err: context.Canceled}
	meta, err := New("ffprobe", WithExecutor(stub)).Inspect(context.Background(), "/a.m4b")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if meta.HasAudio() {
		t.Fatalf("failed run should not report audio: %+v", meta)
	}

	stub = &stubExecutor{output: []byte("[STREAM]\ncodec_name=aac\ncodec_type=audio\n")}
	meta, err = New("ffprobe", WithExecutor(stub)).Inspect(context.Background(), "/a.m4b")
	if err != nil || meta.Codec != "aac" {
		t.Fatalf("Inspect = %+v, %v", meta, err)
	}
}

func TestProbeBlankTargetSkipsExecution(t *testing.T) {
	stub := &stubExecutor{}
	meta := New("ffprobe", WithExecutor(stub)).Probe(context.Background(), "  ")
	if stub.calls != 0 {
		t.Fatal("blank target should not invoke ffprobe")
	}
	if meta.Codec != UnknownCodec {
		t.Fatalf("codec = %q", meta.Codec)
	}
}

func TestRedactDropsQuery(t *testing.T) {
	if got := redact("https://h/a?token=x"); got != "https://h/a" {
		t.Fatalf("redact = %q", got)
	}
	if got := redact("/local/file?.m4b"); got != "/local/file?.m4b" {
		t.Fatalf("local paths untouched, got %q", got)
	}
}
