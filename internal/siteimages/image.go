package siteimages

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Image is a single section-keyed site image as served by the PHP API.
// ImagePath is always absolute once the image has passed through Client.
type Image struct {
	ID         int64   `json:"id"`
	SectionKey string  `json:"section_key"`
	ImagePath  string  `json:"image_path"`
	Width      *int    `json:"width"`
	Height     *int    `json:"height"`
	AltText    *string `json:"alt_text"`
	CreatedAt  string  `json:"created_at"`
	UpdatedAt  string  `json:"updated_at"`
}

// Alt returns the alt text or an empty string.
func (img Image) Alt() string {
	if img.AltText == nil {
		return ""
	}
	return *img.AltText
}

// VersionedURL appends updated_at as a "v" query parameter so browsers and CDNs
// fetch the new file after a re-upload. The in-memory cache ignores it.
func (img Image) VersionedURL() string {
	version := strings.TrimSpace(img.UpdatedAt)
	if version == "" || img.ImagePath == "" {
		return img.ImagePath
	}
	u, err := url.Parse(img.ImagePath)
	if err != nil {
		return img.ImagePath
	}
	q := u.Query()
	q.Set("v", version)
	u.RawQuery = q.Encode()
	return u.String()
}

func cloneImage(src Image) Image {
	cp := src
	if src.Width != nil {
		w := *src.Width
		cp.Width = &w
	}
	if src.Height != nil {
		h := *src.Height
		cp.Height = &h
	}
	if src.AltText != nil {
		a := *src.AltText
		cp.AltText = &a
	}
	return cp
}

// imagePayload is the wire shape. PHP encodes numeric columns as numbers or
// numeric strings depending on the driver, so ids and dimensions use flexInt.
type imagePayload struct {
	ID         flexInt `json:"id" validate:"gt=0"`
	SectionKey string  `json:"section_key" validate:"required"`
	ImagePath  string  `json:"image_path" validate:"required"`
	Width      flexInt `json:"width" validate:"gte=0"`
	Height     flexInt `json:"height" validate:"gte=0"`
	AltText    *string `json:"alt_text"`
	CreatedAt  string  `json:"created_at"`
	UpdatedAt  string  `json:"updated_at"`
}

type flexInt struct {
	Value int64
	Set   bool
}

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = flexInt{}
		return nil
	}
	raw := string(b)
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		raw = strings.TrimSpace(s)
		if raw == "" {
			*f = flexInt{}
			return nil
		}
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		fl, ferr := strconv.ParseFloat(raw, 64)
		if ferr != nil {
			return fmt.Errorf("invalid integer %q", raw)
		}
		n = int64(fl)
	}
	*f = flexInt{Value: n, Set: true}
	return nil
}

func (f flexInt) intPtr() *int {
	if !f.Set || f.Value <= 0 {
		return nil
	}
	v := int(f.Value)
	return &v
}

var payloadValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if f, ok := field.Interface().(flexInt); ok {
			return f.Value
		}
		return nil
	}, flexInt{})
	return v
}

func (p imagePayload) toImage() (Image, error) {
	p.SectionKey = strings.TrimSpace(p.SectionKey)
	p.ImagePath = strings.TrimSpace(p.ImagePath)
	if err := payloadValidator.Struct(p); err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	img := Image{
		ID:         p.ID.Value,
		SectionKey: p.SectionKey,
		ImagePath:  p.ImagePath,
		Width:      p.Width.intPtr(),
		Height:     p.Height.intPtr(),
		CreatedAt:  strings.TrimSpace(p.CreatedAt),
		UpdatedAt:  strings.TrimSpace(p.UpdatedAt),
	}
	if p.AltText != nil {
		alt := *p.AltText
		img.AltText = &alt
	}
	return img, nil
}
