package transfer

import (
	"path/filepath"
	"strings"
)

// Kind classifies a staged artifact by its file extension.
type Kind string

const (
	// KindArchive is a container payload that gets extracted in place.
	KindArchive Kind = "archive"

	// KindRaster is an imagery payload that gets uploaded.
	KindRaster Kind = "raster"

	// KindSidecar is auxiliary metadata distributed alongside the
	// imagery; it is discarded.
	KindSidecar Kind = "sidecar"

	// KindUnknown is anything else; discarded and counted as skipped.
	KindUnknown Kind = "unknown"
)

// sidecarExts are the auxiliary formats the provider ships next to the
// imagery. The GeoTIFF rendition is treated as a sidecar of the JPEG2000
// product, matching what the destination keeps.
var sidecarExts = map[string]bool{
	".xml":  true,
	".txt":  true,
	".tif":  true,
	".tiff": true,
	".md5":  true,
	".html": true,
}

// DefaultKeepExts returns the default set of kept raster extensions.
func DefaultKeepExts() map[string]bool {
	return map[string]bool{".jp2": true}
}

// Classify maps an artifact file name to its kind. keep is the set of
// lowercase extensions (with dot) treated as kept rasters.
func Classify(name string, keep map[string]bool) Kind {
	ext := strings.ToLower(filepath.Ext(name))
	switch {
	case ext == ".zip":
		return KindArchive
	case keep[ext]:
		return KindRaster
	case sidecarExts[ext]:
		return KindSidecar
	default:
		return KindUnknown
	}
}
