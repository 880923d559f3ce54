package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Metadata is the free-form key/value bag attached to products and line items.
type Metadata map[string]interface{}

// Traits is the canonical view of everything the storefront reads out of metadata.
// Nothing outside the data-access boundary should look at raw metadata keys.
type Traits struct {
	IsDigital   bool   `json:"isDigital"`
	Model3DURL  string `json:"model3dUrl,omitempty"`
	VideoURL    string `json:"videoUrl,omitempty"`
	DownloadURL string `json:"downloadUrl,omitempty"`
}

var (
	model3DKeys  = []string{"model_3d_url", "model3dUrl", "model3DUrl", "model_3d", "3d_model"}
	videoKeys    = []string{"video_url", "videoUrl", "video", "video_path", "video_product"}
	downloadKeys = []string{"download_url", "download_link", "file_url"}

	videoExtensions = []string{".mp4", ".webm", ".mov"}

	model3DMarker = regexp.MustCompile(`(?i)MODEL_3D:(\S+)`)
	videoMarker   = regexp.MustCompile(`(?i)VIDEO:(\S+)`)
)

// MetadataFromAny accepts metadata either as an object or as a list of
// {key|name, value|data} entries and returns it as a flat map.
func MetadataFromAny(v interface{}) Metadata {
	switch m := v.(type) {
	case map[string]interface{}:
		return Metadata(m)
	case Metadata:
		return m
	case []interface{}:
		out := Metadata{}
		for _, raw := range m {
			entry, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			key, _ := entry["key"].(string)
			if key == "" {
				key, _ = entry["name"].(string)
			}
			if key == "" {
				continue
			}
			val, ok := entry["value"]
			if !ok || val == nil {
				val = entry["data"]
			}
			out[key] = val
		}
		return out
	default:
		return nil
	}
}

// TraitsFromMetadata folds the given metadata sources, highest priority first,
// into Traits. description is scanned for MODEL_3D:/VIDEO: markers when no
// metadata key supplies those URLs. The returned warnings name values that
// looked like a goods-type marker but could not be interpreted; such items are
// treated as physical.
func TraitsFromMetadata(description string, sources ...Metadata) (Traits, []string) {
	var (
		t        Traits
		warnings []string
		typeSeen bool
	)

	for _, md := range sources {
		if len(md) == 0 {
			continue
		}
		if !typeSeen {
			digital, seen, warn := goodsType(md)
			if warn != "" {
				warnings = append(warnings, warn)
			}
			if seen {
				typeSeen = true
				t.IsDigital = digital
			}
		}
		if t.Model3DURL == "" {
			t.Model3DURL = firstString(md, model3DKeys)
		}
		if t.VideoURL == "" {
			t.VideoURL = firstString(md, videoKeys)
		}
		if t.DownloadURL == "" {
			if u := firstString(md, downloadKeys); u != "" && !isVideo(u) {
				t.DownloadURL = u
			}
		}
	}

	if description != "" {
		if t.Model3DURL == "" {
			if m := model3DMarker.FindStringSubmatch(description); m != nil {
				t.Model3DURL = m[1]
			}
		}
		if t.VideoURL == "" {
			if m := videoMarker.FindStringSubmatch(description); m != nil {
				t.VideoURL = m[1]
			}
		}
	}
	return t, warnings
}

// StripMarkers removes MODEL_3D:/VIDEO: markers from a product description.
func StripMarkers(description string) string {
	out := model3DMarker.ReplaceAllString(description, "")
	out = videoMarker.ReplaceAllString(out, "")
	return strings.TrimSpace(out)
}

func goodsType(md Metadata) (digital, seen bool, warning string) {
	if raw, ok := md["product_type"]; ok && raw != nil {
		s, _ := raw.(string)
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "digital":
			return true, true, ""
		case "physical":
			return false, true, ""
		default:
			warning = fmt.Sprintf("unrecognised product_type %v", raw)
		}
	}
	if raw, ok := md["is_digital"]; ok && raw != nil {
		switch v := raw.(type) {
		case bool:
			return v, true, warning
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err == nil {
				return b, true, warning
			}
			return false, false, fmt.Sprintf("unrecognised is_digital %q", v)
		default:
			return false, false, fmt.Sprintf("unrecognised is_digital %v", raw)
		}
	}
	return false, false, warning
}

func firstString(md Metadata, keys []string) string {
	for _, k := range keys {
		if s, ok := md[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func isVideo(u string) bool {
	lower := strings.ToLower(u)
	for _, ext := range videoExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
