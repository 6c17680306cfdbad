// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package kijiji

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"admanager/internal/wire"
)

// adListFields is the field filter applied when listing all of a user's
// ads; it matches the set the mobile app requests.
const adListFields = "id,title,price,ad-type,locations,ad-status,category,pictures," +
	"start-date-time,features-active,view-ad-count,user-id,phone,email,rank,ad-address," +
	"phone-click-count,map-view-count,ad-source-id,ad-channel-id,contact-methods," +
	"attributes,link,description,feature-group-active,end-date-time,extended-info,highest-price"

// imageBucketAlias is the upload bucket the mobile app targets.
const imageBucketAlias = "ca-prod-fsbo-ads"

// imageExpiry is how far in the future uploaded images expire; the mobile
// app sets 199 days 23 hours.
const imageExpiry = 199*24*time.Hour - time.Hour

// Login authenticates against the upstream and returns the user ID and
// session token.
func (c *Client) Login(ctx context.Context, username, password string) (userID, token string, err error) {
	const op = "login"

	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)
	form.Set("socialAutoRegistration", "false")

	extra := http.Header{}
	extra.Set("Content-Type", "application/x-www-form-urlencoded")

	status, doc, err := c.send(ctx, c.httpClient, op, http.MethodPost,
		c.baseURL+"/users/login", extra, strings.NewReader(form.Encode()))
	if err != nil {
		return "", "", err
	}
	if status != http.StatusOK {
		return "", "", &UpstreamError{Op: op, StatusCode: status, Message: errorReason(doc)}
	}

	userID = doc.GetString("user:user-logins", "user:user-login", "user:id")
	token = doc.GetString("user:user-logins", "user:user-login", "user:token")
	if userID == "" || token == "" {
		return "", "", &ProtocolError{Op: op, Err: fmt.Errorf("user ID or token missing from response")}
	}
	return userID, token, nil
}

// GetProfile fetches the user's profile document.
func (c *Client) GetProfile(ctx context.Context, userID, token string) (wire.Document, error) {
	return c.getDoc(ctx, "get profile", c.baseURL+"/users/"+userID+"/profile", userID, token)
}

// DisplayName extracts the display name from a profile document.
func DisplayName(profile wire.Document) string {
	return profile.GetString("user:user-profile", "user:user-display-name")
}

// GetAd fetches a single ad by ID.
func (c *Client) GetAd(ctx context.Context, userID, token, adID string) (wire.Document, error) {
	return c.getDoc(ctx, "get ad", c.baseURL+"/users/"+userID+"/ads/"+adID, userID, token)
}

// GetAds lists all of the user's ads, paginated and field-filtered the
// way the mobile app queries them.
func (c *Client) GetAds(ctx context.Context, userID, token string) (wire.Document, error) {
	u := c.baseURL + "/users/" + userID + "/ads?size=50&page=0&_in=" + adListFields
	return c.getDoc(ctx, "list ads", u, userID, token)
}

// GetCategories fetches the full category tree metadata.
func (c *Client) GetCategories(ctx context.Context, userID, token string) (wire.Document, error) {
	return c.getDoc(ctx, "get categories", c.baseURL+"/categories", userID, token)
}

// GetLocations fetches the full location tree metadata.
func (c *Client) GetLocations(ctx context.Context, userID, token string) (wire.Document, error) {
	return c.getDoc(ctx, "get locations", c.baseURL+"/locations", userID, token)
}

// GetAttributes fetches the attribute metadata for a category. The
// result drives the dynamic post form; it is intentionally never cached
// so dependent choices always reflect the live schema.
func (c *Client) GetAttributes(ctx context.Context, userID, token, categoryID string) (wire.Document, error) {
	return c.getDoc(ctx, "get attributes", c.baseURL+"/ads/metadata/"+categoryID, userID, token)
}

// DeleteAd removes an ad. Only a 204 No Content response counts as
// success; any other status is an upstream error.
func (c *Client) DeleteAd(ctx context.Context, userID, token, adID string) error {
	const op = "delete ad"

	extra := http.Header{}
	extra.Set("X-ECG-Authorization-User", authHeader(userID, token))

	status, doc, err := c.send(ctx, c.httpClient, op, http.MethodDelete,
		c.baseURL+"/users/"+userID+"/ads/"+adID, extra, nil)
	if err != nil {
		return err
	}
	if status != http.StatusNoContent {
		return &UpstreamError{Op: op, StatusCode: status, Message: errorReason(doc)}
	}
	return nil
}

// PostAd submits a new ad payload (already-marshaled XML) and returns the
// new ad's ID. No local validation is performed; the upstream reports
// incorrect inputs through its error envelope.
func (c *Client) PostAd(ctx context.Context, userID, token string, payload []byte) (string, error) {
	const op = "post ad"

	extra := http.Header{}
	extra.Set("X-ECG-Authorization-User", authHeader(userID, token))
	extra.Set("Content-Type", "application/xml")

	status, doc, err := c.send(ctx, c.httpClient, op, http.MethodPost,
		c.baseURL+"/users/"+userID+"/ads", extra, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	if status != http.StatusCreated {
		return "", &UpstreamError{Op: op, StatusCode: status, Message: errorReason(doc)}
	}

	adID := doc.GetString("ad:ad", "@id")
	if adID == "" {
		return "", &ProtocolError{Op: op, Err: fmt.Errorf("ad ID missing from response")}
	}
	return adID, nil
}

// UploadImage sends an image to the upload API and returns its hosted
// URL. The upstream appends a query string selecting a thumbnail size
// hint; it is stripped so callers can append their own size selector.
func (c *Client) UploadImage(ctx context.Context, userID, token, filename, contentType string, data io.Reader) (string, error) {
	const op = "upload image"

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if err := mw.WriteField("bucketAlias", imageBucketAlias); err != nil {
		return "", fmt.Errorf("kijiji %s: %w", op, err)
	}
	expiry := time.Now().Add(imageExpiry).Unix()
	if err := mw.WriteField("objectExpiration", strconv.FormatInt(expiry, 10)); err != nil {
		return "", fmt.Errorf("kijiji %s: %w", op, err)
	}

	partHeader := textproto.MIMEHeader{}
	partHeader.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	partHeader.Set("Content-Type", contentType)
	part, err := mw.CreatePart(partHeader)
	if err != nil {
		return "", fmt.Errorf("kijiji %s: %w", op, err)
	}
	if _, err := io.Copy(part, data); err != nil {
		return "", fmt.Errorf("kijiji %s: read image: %w", op, err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("kijiji %s: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, &buf)
	if err != nil {
		return "", fmt.Errorf("kijiji %s: build request: %w", op, err)
	}
	req.Header = fixedHeaders()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-ECG-Platform", "android")
	req.Header.Set("X-ECG-App-Version", appVersion)
	req.Header.Set("X-ECG-Authorization-User", authHeader(userID, token))
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransportError{Op: op, Err: err}
	}

	if resp.StatusCode != http.StatusCreated {
		var envelope mobileEnvelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return "", &UpstreamError{Op: op, StatusCode: resp.StatusCode, Message: unknownMobileError}
		}
		return "", &UpstreamError{Op: op, StatusCode: resp.StatusCode, Message: envelope.reason()}
	}

	var body struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", &ProtocolError{Op: op, Err: err}
	}
	if body.URL == "" {
		return "", &ProtocolError{Op: op, Err: fmt.Errorf("image URL missing from response")}
	}

	return StripSizeHint(body.URL), nil
}

// StripSizeHint removes the query string from an image URL. The upload
// API returns URLs suffixed with a thumbnail size selector; the payload
// assembler appends its own per-variant selectors.
func StripSizeHint(imageURL string) string {
	u, err := url.Parse(imageURL)
	if err != nil {
		return imageURL
	}
	u.RawQuery = ""
	return u.String()
}

// GetConversations lists the first page of the user's conversations.
// Conversation listing is the one endpoint with an extended timeout.
func (c *Client) GetConversations(ctx context.Context, userID, token string) (wire.Document, error) {
	u := c.baseURL + "/users/" + userID + "/conversations?size=25"
	return c.getDocSlow(ctx, "list conversations", u, userID, token)
}

// GetConversationPage lists one page of the user's conversations.
func (c *Client) GetConversationPage(ctx context.Context, userID, token string, page int) (wire.Document, error) {
	u := fmt.Sprintf("%s/users/%s/conversations?size=25&page=%d", c.baseURL, userID, page)
	return c.getDocSlow(ctx, "list conversations", u, userID, token)
}

// GetConversation fetches one conversation with its most recent messages.
func (c *Client) GetConversation(ctx context.Context, userID, token, conversationID string) (wire.Document, error) {
	u := c.baseURL + "/users/" + userID + "/conversations/" + conversationID + "?tail=100"
	return c.getDocSlow(ctx, "get conversation", u, userID, token)
}

// Reply holds one outgoing conversation message.
type Reply struct {
	ConversationID string
	AdID           string
	Username       string
	Email          string
	Phone          string
	Message        string
	Direction      string // "owner" to message the ad owner, "buyer" for a potential buyer
}

// PostConversationReply sends a reply within an existing conversation.
func (c *Client) PostConversationReply(ctx context.Context, userID, token string, reply Reply) (wire.Document, error) {
	const op = "post reply"

	var direction string
	switch strings.ToLower(reply.Direction) {
	case "owner":
		direction = "TO_OWNER"
	case "buyer":
		direction = "TO_BUYER"
	default:
		return nil, fmt.Errorf("kijiji %s: direction must be %q or %q, not %q", op, "owner", "buyer", reply.Direction)
	}

	payload := wire.Document{
		"reply:reply-to-ad-conversation": map[string]any{
			"@xmlns:reply":          "http://www.ebayclassifiedsgroup.com/schema/reply/v1",
			"@xmlns:types":          "http://www.ebayclassifiedsgroup.com/schema/types/v1",
			"reply:ad-id":           reply.AdID,
			"reply:conversation-id": reply.ConversationID,
			"reply:reply-username":  reply.Username,
			"reply:reply-email":     reply.Email,
			"reply:reply-phone":     reply.Phone,
			"reply:reply-message":   reply.Message,
			"reply:reply-direction": map[string]any{"types:value": direction},
		},
	}
	body, err := payload.Marshal()
	if err != nil {
		return nil, fmt.Errorf("kijiji %s: %w", op, err)
	}

	extra := http.Header{}
	extra.Set("X-ECG-Authorization-User", authHeader(userID, token))
	extra.Set("Content-Type", "application/xml")

	status, doc, err := c.send(ctx, c.httpClient, op, http.MethodPost,
		c.baseURL+"/replies/reply-to-ad-conversation", extra, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if status != http.StatusCreated {
		return nil, &UpstreamError{Op: op, StatusCode: status, Message: errorReason(doc)}
	}
	return doc, nil
}

// getDoc performs an authenticated GET expecting a 200 with a document.
func (c *Client) getDoc(ctx context.Context, op, url, userID, token string) (wire.Document, error) {
	return c.getDocWith(ctx, c.httpClient, op, url, userID, token)
}

// getDocSlow is getDoc on the extended-timeout client.
func (c *Client) getDocSlow(ctx context.Context, op, url, userID, token string) (wire.Document, error) {
	return c.getDocWith(ctx, c.slowClient, op, url, userID, token)
}

func (c *Client) getDocWith(ctx context.Context, client *http.Client, op, url, userID, token string) (wire.Document, error) {
	extra := http.Header{}
	extra.Set("X-ECG-Authorization-User", authHeader(userID, token))

	status, doc, err := c.send(ctx, client, op, http.MethodGet, url, extra, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &UpstreamError{Op: op, StatusCode: status, Message: errorReason(doc)}
	}
	return doc, nil
}
