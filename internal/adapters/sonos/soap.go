package sonos

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	avTransportService      = "urn:schemas-upnp-org:service:AVTransport:1"
	renderingControlService = "urn:schemas-upnp-org:service:RenderingControl:1"

	maxResponseBytes = 1 << 20
)

var ErrNoControlURL = errors.New("service control url not resolved")

type arg struct {
	name  string
	value string
}

type FaultError struct {
	Status      int
	Code        string
	Description string
}

func (e *FaultError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("soap fault (http %d, upnp error %s): %s", e.Status, e.Code, e.Description)
	}
	return fmt.Sprintf("soap fault (http %d): %s", e.Status, e.Description)
}

func (c *Client) call(ctx context.Context, controlURL, service, action string, args ...arg) (map[string]string, error) {
	if controlURL == "" {
		return nil, fmt.Errorf("%s: %w", action, ErrNoControlURL)
	}
	body := envelope(service, action, args)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, controlURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", action, err)
	}
	req.Header.Set("Content-Type", `text/xml; charset="utf-8"`)
	req.Header.Set("SOAPACTION", `"`+service+"#"+action+`"`)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", action, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", action, err)
	}

	values, fault, err := parseResponse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", action, err)
	}
	if fault {
		return nil, fmt.Errorf("%s: %w", action, &FaultError{
			Status:      resp.StatusCode,
			Code:        values["errorCode"],
			Description: firstNonEmpty(values["errorDescription"], values["faultstring"]),
		})
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: unexpected status %d", action, resp.StatusCode)
	}
	return values, nil
}

func envelope(service, action string, args []arg) []byte {
	var b bytes.Buffer
	b.WriteString(`<?xml version="1.0" encoding="utf-8"?>`)
	b.WriteString(`<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/" s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/"><s:Body>`)
	b.WriteString(`<u:` + action + ` xmlns:u="` + service + `">`)
	for _, a := range args {
		b.WriteString("<" + a.name + ">")
		_ = xml.EscapeText(&b, []byte(a.value))
		b.WriteString("</" + a.name + ">")
	}
	b.WriteString(`</u:` + action + `>`)
	b.WriteString(`</s:Body></s:Envelope>`)
	return b.Bytes()
}

// parseResponse flattens every leaf element of a SOAP envelope into a map
// keyed by local name. The second result reports whether the body held a
// Fault.
func parseResponse(raw []byte) (map[string]string, bool, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return map[string]string{}, false, nil
	}

	dec := xml.NewDecoder(bytes.NewReader(raw))
	values := map[string]string{}
	fault := false

	type frame struct {
		name     string
		hasChild bool
	}
	var stack []frame
	var text strings.Builder

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, false, fmt.Errorf("decode soap response: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if len(stack) > 0 {
				stack[len(stack)-1].hasChild = true
			}
			if t.Name.Local == "Fault" {
				fault = true
			}
			stack = append(stack, frame{name: t.Name.Local})
			text.Reset()
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			if len(stack) == 0 {
				continue
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if !top.hasChild {
				values[top.name] = strings.TrimSpace(text.String())
			}
			text.Reset()
		}
	}
	return values, fault, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
