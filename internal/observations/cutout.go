package observations

import "fmt"

// Thumbnail types produced by the backfill job.
const (
	ThumbnailSDSS         = "sdss"
	ThumbnailPS1          = "ps1"
	ThumbnailLegacySurvey = "ls"
)

// SDSSCutoutURL builds the public Sloan Digital Sky Survey cutout URL
// for the coordinates.
func SDSSCutoutURL(ra, dec float64) string {
	return fmt.Sprintf(
		"http://skyservice.pha.jhu.edu/DR9/ImgCutout/getjpeg.aspx?ra=%g&dec=%g&scale=0.3&width=200&height=200&opt=G&query=&Grid=on",
		ra, dec)
}

// PanSTARRSCutoutURL builds the PanSTARRS-1 cutout query URL. The PS1
// service has no direct image endpoint; this is the page embedding the
// stacked g/r/i color cutout.
func PanSTARRSCutoutURL(ra, dec float64) string {
	return fmt.Sprintf(
		"http://ps1images.stsci.edu/cgi-bin/ps1cutouts?pos=%g+%g&filter=color&filter=g&filter=r&filter=i&filetypes=stack&size=250",
		ra, dec)
}

// LegacySurveyCutoutURL builds the Legacy Survey viewer cutout URL.
func LegacySurveyCutoutURL(ra, dec float64) string {
	return fmt.Sprintf(
		"http://legacysurvey.org/viewer/cutout.jpg?ra=%g&dec=%g&zoom=15&layer=dr8",
		ra, dec)
}

// CutoutURL dispatches on thumbnail type.
func CutoutURL(thumbType string, ra, dec float64) (string, bool) {
	switch thumbType {
	case ThumbnailSDSS:
		return SDSSCutoutURL(ra, dec), true
	case ThumbnailPS1:
		return PanSTARRSCutoutURL(ra, dec), true
	case ThumbnailLegacySurvey:
		return LegacySurveyCutoutURL(ra, dec), true
	default:
		return "", false
	}
}
