// Package sonos issues the Sonos-specific UPnP calls that the generic DLNA
// payload does not cover: queue handling, skipping, play modes, relative
// volume and the equalizer settings.
package sonos

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/hashicorp/go-cleanhttp"
	"go2tv.app/sonosbox/internal/domain"
)

const DefaultPort = 1400

const descriptionPath = "/xml/device_description.xml"

func DescriptionURL(addr netip.Addr) string {
	return "http://" + netip.AddrPortFrom(addr, DefaultPort).String() + descriptionPath
}

// Endpoints are the absolute control URLs resolved from the device
// description.
type Endpoints struct {
	AVTransport      string
	RenderingControl string
}

type Client struct {
	endpoints Endpoints
	http      *http.Client
}

func NewClient(endpoints Endpoints, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = cleanhttp.DefaultPooledClient()
	}
	return &Client{
		endpoints: endpoints,
		http:      httpClient,
	}
}

func instance() arg { return arg{name: "InstanceID", value: "0"} }

func master() arg { return arg{name: "Channel", value: "Master"} }

func (c *Client) avTransport(ctx context.Context, action string, args ...arg) (map[string]string, error) {
	return c.call(ctx, c.endpoints.AVTransport, avTransportService, action, append([]arg{instance()}, args...)...)
}

func (c *Client) renderingControl(ctx context.Context, action string, args ...arg) (map[string]string, error) {
	return c.call(ctx, c.endpoints.RenderingControl, renderingControlService, action, append([]arg{instance()}, args...)...)
}

func (c *Client) Next(ctx context.Context) error {
	_, err := c.avTransport(ctx, "Next")
	return err
}

func (c *Client) Previous(ctx context.Context) error {
	_, err := c.avTransport(ctx, "Previous")
	return err
}

func (c *Client) ClearQueue(ctx context.Context) error {
	_, err := c.avTransport(ctx, "RemoveAllTracksFromQueue")
	return err
}

func (c *Client) SetTransportURI(ctx context.Context, uri, metadata string) error {
	_, err := c.avTransport(ctx, "SetAVTransportURI",
		arg{name: "CurrentURI", value: uri},
		arg{name: "CurrentURIMetaData", value: metadata},
	)
	return err
}

func (c *Client) QueueNext(ctx context.Context, uri, metadata string) error {
	_, err := c.avTransport(ctx, "AddURIToQueue",
		arg{name: "EnqueuedURI", value: uri},
		arg{name: "EnqueuedURIMetaData", value: metadata},
		arg{name: "DesiredFirstTrackNumberEnqueued", value: "0"},
		arg{name: "EnqueueAsNext", value: "1"},
	)
	return err
}

// Track reports the current queue position, or nil when nothing is loaded.
func (c *Client) Track(ctx context.Context) (*domain.Track, error) {
	values, err := c.avTransport(ctx, "GetPositionInfo")
	if err != nil {
		return nil, err
	}
	uri := values["TrackURI"]
	if uri == "" {
		return nil, nil
	}

	track := &domain.Track{
		URI:      uri,
		Duration: parseDuration(values["TrackDuration"]),
		Elapsed:  parseDuration(values["RelTime"]),
	}
	if meta, ok := parseDIDL(values["TrackMetaData"]); ok {
		track.Title = meta.Title
		track.Creator = meta.Creator
	}
	if track.Title == "" {
		track.Title = titleFromURI(uri)
	}
	return track, nil
}

func (c *Client) SetCrossfade(ctx context.Context, enabled bool) error {
	_, err := c.avTransport(ctx, "SetCrossfadeMode", arg{name: "CrossfadeMode", value: boolArg(enabled)})
	return err
}

func (c *Client) playMode(ctx context.Context) (bool, domain.RepeatMode, error) {
	values, err := c.avTransport(ctx, "GetTransportSettings")
	if err != nil {
		return false, domain.RepeatNone, err
	}
	shuffle, repeat := decodePlayMode(values["PlayMode"])
	return shuffle, repeat, nil
}

func (c *Client) setPlayMode(ctx context.Context, shuffle bool, repeat domain.RepeatMode) error {
	_, err := c.avTransport(ctx, "SetPlayMode", arg{name: "NewPlayMode", value: encodePlayMode(shuffle, repeat)})
	return err
}

// SetShuffle changes the shuffle half of the play mode and keeps the
// current repeat setting.
func (c *Client) SetShuffle(ctx context.Context, enabled bool) error {
	_, repeat, err := c.playMode(ctx)
	if err != nil {
		return err
	}
	return c.setPlayMode(ctx, enabled, repeat)
}

// SetRepeatMode changes the repeat half of the play mode and keeps the
// current shuffle setting.
func (c *Client) SetRepeatMode(ctx context.Context, mode domain.RepeatMode) error {
	shuffle, _, err := c.playMode(ctx)
	if err != nil {
		return err
	}
	return c.setPlayMode(ctx, shuffle, mode)
}

func (c *Client) SetVolumeRelative(ctx context.Context, delta int) (uint16, error) {
	values, err := c.renderingControl(ctx, "SetRelativeVolume", master(), arg{name: "Adjustment", value: strconv.Itoa(delta)})
	if err != nil {
		return 0, err
	}
	return parseVolume(values["NewVolume"])
}

func (c *Client) SetLoudness(ctx context.Context, enabled bool) error {
	_, err := c.renderingControl(ctx, "SetLoudness", master(), arg{name: "DesiredLoudness", value: boolArg(enabled)})
	return err
}

func (c *Client) SetTreble(ctx context.Context, treble int8) error {
	_, err := c.renderingControl(ctx, "SetTreble", arg{name: "DesiredTreble", value: strconv.Itoa(int(treble))})
	return err
}

func (c *Client) SetBass(ctx context.Context, bass int8) error {
	_, err := c.renderingControl(ctx, "SetBass", arg{name: "DesiredBass", value: strconv.Itoa(int(bass))})
	return err
}

func boolArg(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func parseVolume(raw string) (uint16, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid volume %q: %w", raw, err)
	}
	return uint16(v), nil
}

func decodePlayMode(mode string) (bool, domain.RepeatMode) {
	switch strings.ToUpper(strings.TrimSpace(mode)) {
	case "REPEAT_ALL":
		return false, domain.RepeatAll
	case "REPEAT_ONE":
		return false, domain.RepeatOne
	case "SHUFFLE_NOREPEAT":
		return true, domain.RepeatNone
	case "SHUFFLE":
		return true, domain.RepeatAll
	case "SHUFFLE_REPEAT_ONE":
		return true, domain.RepeatOne
	default:
		return false, domain.RepeatNone
	}
}

func encodePlayMode(shuffle bool, repeat domain.RepeatMode) string {
	switch {
	case shuffle && repeat == domain.RepeatAll:
		return "SHUFFLE"
	case shuffle && repeat == domain.RepeatOne:
		return "SHUFFLE_REPEAT_ONE"
	case shuffle:
		return "SHUFFLE_NOREPEAT"
	case repeat == domain.RepeatAll:
		return "REPEAT_ALL"
	case repeat == domain.RepeatOne:
		return "REPEAT_ONE"
	default:
		return "NORMAL"
	}
}

// parseDuration converts an H:MM:SS time string to whole seconds. Fractions
// and unparsable values such as NOT_IMPLEMENTED yield 0.
func parseDuration(raw string) uint32 {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexByte(raw, '.'); i >= 0 {
		raw = raw[:i]
	}
	parts := strings.Split(raw, ":")
	if len(parts) != 3 {
		return 0
	}
	var total uint64
	for _, p := range parts {
		n, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return 0
		}
		total = total*60 + n
	}
	return uint32(total)
}

type didlLite struct {
	Items []struct {
		Title   string `xml:"title"`
		Creator string `xml:"creator"`
	} `xml:"item"`
}

type didlMeta struct {
	Title   string
	Creator string
}

func parseDIDL(raw string) (didlMeta, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "NOT_IMPLEMENTED" {
		return didlMeta{}, false
	}
	var doc didlLite
	if err := xml.Unmarshal([]byte(raw), &doc); err != nil || len(doc.Items) == 0 {
		return didlMeta{}, false
	}
	return didlMeta{
		Title:   strings.TrimSpace(doc.Items[0].Title),
		Creator: strings.TrimSpace(doc.Items[0].Creator),
	}, true
}

func titleFromURI(uri string) string {
	parsed, err := url.Parse(uri)
	if err != nil || parsed.Path == "" {
		return ""
	}
	base := path.Base(parsed.Path)
	if base == "/" || base == "." {
		return ""
	}
	return strings.TrimSuffix(base, path.Ext(base))
}
