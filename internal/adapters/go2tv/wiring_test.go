package go2tv

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"

	"go2tv.app/go2tv/v2/soapcalls"
	"go2tv.app/sonosbox/internal/adapters"
	"go2tv.app/sonosbox/internal/domain"
)

type callKey struct{}

type fakePayload struct {
	sent      []string
	transport []string
	volume    int
	volumes   []string
	err       error
	ctx       context.Context

	avTransportURL      string
	renderingControlURL string
}

func (f *fakePayload) SendtoTV(action string) error {
	f.sent = append(f.sent, action)
	return f.err
}

func (f *fakePayload) GetTransportInfo() ([]string, error) {
	return f.transport, f.err
}

func (f *fakePayload) GetVolumeSoapCall() (int, error) {
	return f.volume, f.err
}

func (f *fakePayload) SetVolumeSoapCall(v string) error {
	f.volumes = append(f.volumes, v)
	return f.err
}

func (f *fakePayload) SetContext(ctx context.Context) {
	f.ctx = ctx
}

func (f *fakePayload) ControlURLs() (string, string) {
	return f.avTransportURL, f.renderingControlURL
}

type fakeDLNAFactory struct {
	payload *fakePayload
	err     error
	opts    *soapcalls.Options
}

func (f *fakeDLNAFactory) NewTVPayload(o *soapcalls.Options) (adapters.DLNAPayload, error) {
	f.opts = o
	if f.err != nil {
		return nil, f.err
	}
	return f.payload, nil
}

func TestConnectUsesDescriptionLocation(t *testing.T) {
	dlna := &fakeDLNAFactory{payload: &fakePayload{}}
	f := NewSpeakerFactory(dlna, nil)

	speaker, err := f.Connect(context.Background(), netip.MustParseAddr("192.168.1.30"))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	want := "http://192.168.1.30:1400/xml/device_description.xml"
	if dlna.opts == nil || dlna.opts.DMR != want {
		t.Fatalf("expected DMR %q, got %+v", want, dlna.opts)
	}
	if speaker.Location() != want {
		t.Fatalf("unexpected location %q", speaker.Location())
	}
}

func TestConnectFailureIsUnreachable(t *testing.T) {
	dlna := &fakeDLNAFactory{err: errors.New("dial tcp: i/o timeout")}
	f := NewSpeakerFactory(dlna, nil)

	_, err := f.Connect(context.Background(), netip.MustParseAddr("10.9.9.9"))
	if err == nil {
		t.Fatal("expected error")
	}
	if domain.CodeOf(err) != domain.CodeDeviceUnreachable {
		t.Fatalf("expected %s, got %v", domain.CodeDeviceUnreachable, err)
	}
}

func TestTransportGoesThroughPayload(t *testing.T) {
	payload := &fakePayload{transport: []string{"PLAYING", "OK", "1"}}
	f := NewSpeakerFactory(&fakeDLNAFactory{payload: payload}, nil)

	speaker, err := f.Connect(context.Background(), netip.MustParseAddr("127.0.0.1"))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	ctx := context.WithValue(context.Background(), callKey{}, "call")
	if err := speaker.Play(ctx); err != nil {
		t.Fatalf("play: %v", err)
	}
	if err := speaker.Pause(ctx); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := speaker.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if strings.Join(payload.sent, ",") != "Play,Pause,Stop" {
		t.Fatalf("unexpected actions %v", payload.sent)
	}
	if payload.ctx != ctx {
		t.Fatal("expected call context to be handed to the payload")
	}

	playing, err := speaker.IsPlaying(ctx)
	if err != nil || !playing {
		t.Fatalf("expected playing, got %v err=%v", playing, err)
	}
	payload.transport = []string{"PAUSED_PLAYBACK", "OK", "1"}
	playing, err = speaker.IsPlaying(ctx)
	if err != nil || playing {
		t.Fatalf("expected not playing, got %v err=%v", playing, err)
	}
}

func TestVolumeGoesThroughPayload(t *testing.T) {
	var hits []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits = append(hits, r.URL.Path)
	}))
	defer srv.Close()

	payload := &fakePayload{volume: 27, renderingControlURL: srv.URL + "/MediaRenderer/RenderingControl/Control"}
	f := NewSpeakerFactory(&fakeDLNAFactory{payload: payload}, srv.Client())
	speaker, err := f.Connect(context.Background(), netip.MustParseAddr("127.0.0.1"))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	ctx := context.WithValue(context.Background(), callKey{}, "volume")
	if err := speaker.SetVolume(ctx, 30); err != nil {
		t.Fatalf("set volume: %v", err)
	}
	if err := speaker.SetVolume(ctx, 140); err != nil {
		t.Fatalf("set volume: %v", err)
	}
	volume, err := speaker.Volume(ctx)
	if err != nil {
		t.Fatalf("volume: %v", err)
	}
	if volume != 27 {
		t.Fatalf("expected 27, got %d", volume)
	}
	if strings.Join(payload.volumes, ",") != "30,100" {
		t.Fatalf("unexpected volume calls %v", payload.volumes)
	}
	if payload.ctx != ctx {
		t.Fatal("expected call context to be handed to the payload")
	}
	if len(hits) != 0 {
		t.Fatalf("volume must not bypass the payload, got requests %v", hits)
	}
}

func TestSonosCallsUseResolvedControlURLs(t *testing.T) {
	var gotPath, gotAction string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		gotPath = r.URL.Path
		gotAction = r.Header.Get("SOAPACTION")
		_, _ = io.WriteString(w, `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body><u:SetRelativeVolumeResponse xmlns:u="urn:schemas-upnp-org:service:RenderingControl:1"><NewVolume>23</NewVolume></u:SetRelativeVolumeResponse></s:Body></s:Envelope>`)
	}))
	defer srv.Close()

	payload := &fakePayload{
		avTransportURL:      srv.URL + "/custom/AVTransport/Control",
		renderingControlURL: srv.URL + "/custom/RenderingControl/Control",
	}
	f := NewSpeakerFactory(&fakeDLNAFactory{payload: payload}, srv.Client())
	speaker, err := f.Connect(context.Background(), netip.MustParseAddr("127.0.0.1"))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	volume, err := speaker.SetVolumeRelative(context.Background(), -1)
	if err != nil {
		t.Fatalf("relative volume: %v", err)
	}
	if volume != 23 {
		t.Fatalf("expected 23, got %d", volume)
	}
	if gotPath != "/custom/RenderingControl/Control" {
		t.Fatalf("expected resolved RenderingControl URL, got %s", gotPath)
	}
	if !strings.Contains(gotAction, "RenderingControl:1#SetRelativeVolume") {
		t.Fatalf("unexpected soap action %q", gotAction)
	}
	if len(payload.sent) != 0 {
		t.Fatalf("relative volume must not use the payload, got %v", payload.sent)
	}
}
