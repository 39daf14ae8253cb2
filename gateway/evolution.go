// Package gateway integrates with the Evolution API, the WhatsApp
// gateway that performs actual message delivery.
package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"

	"zapflow/utils"
)

const defaultTimeout = 15 * time.Second

// Client is the outbound Evolution API adapter. Stateless; callers
// retry on failure.
type Client struct {
	baseURL  string
	apiKey   string
	instance string
	client   *fasthttp.Client
	timeout  time.Duration
	log      *logrus.Logger
}

func NewClient(baseURL, apiKey, instance string, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
	}
	return &Client{
		baseURL:  baseURL,
		apiKey:   apiKey,
		instance: instance,
		client:   &fasthttp.Client{},
		timeout:  defaultTimeout,
		log:      logger,
	}
}

// SendText delivers a plain text message to the given phone number.
func (c *Client) SendText(phone, text string) error {
	payload := map[string]interface{}{
		"number": utils.WhatsAppJID(phone),
		"text":   text,
	}
	return c.post(fmt.Sprintf("/message/sendText/%s", c.instance), payload)
}

// SendMedia delivers a media message. Audio goes through the dedicated
// audio endpoint; everything else uses the generic sendMedia call.
func (c *Client) SendMedia(phone, mediaURL, mediaType, caption string) error {
	number := utils.WhatsAppJID(phone)

	if mediaType == "audio" {
		payload := map[string]interface{}{
			"number": number,
			"audio":  mediaURL,
		}
		return c.post(fmt.Sprintf("/message/sendWhatsAppAudio/%s", c.instance), payload)
	}

	payload := map[string]interface{}{
		"number":    number,
		"media":     mediaURL,
		"mediatype": mediaType,
		"caption":   caption,
		"fileName":  "file",
	}
	return c.post(fmt.Sprintf("/message/sendMedia/%s", c.instance), payload)
}

func (c *Client) post(path string, payload interface{}) error {
	if c.baseURL == "" || c.apiKey == "" {
		return fmt.Errorf("evolution gateway not configured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("apikey", c.apiKey)
	req.SetBody(body)

	if err := c.client.DoTimeout(req, resp, c.timeout); err != nil {
		c.log.WithError(err).WithField("path", path).Error("evolution request failed")
		return fmt.Errorf("evolution request failed: %w", err)
	}

	status := resp.StatusCode()
	if status < 200 || status > 299 {
		c.log.WithFields(logrus.Fields{
			"path":   path,
			"status": status,
		}).Error("evolution rejected request")
		return fmt.Errorf("evolution returned status %d", status)
	}
	return nil
}
