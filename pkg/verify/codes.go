package verify

import "fmt"

// Severity classifies a Note per spec.md §4.8's output shape.
type Severity int

const (
	SeverityError Severity = iota
	SeverityBv21Error
	SeverityWarning
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityBv21Error:
		return "bv21-error"
	case SeverityWarning:
		return "warning"
	default:
		return "unknown"
	}
}

// Code enumerates the complete set of verifier findings from spec.md §6.
type Code string

const (
	FailedRead                          Code = "FailedRead"
	MismatchedCplHashes                 Code = "MismatchedCplHashes"
	InvalidPictureFrameRate             Code = "InvalidPictureFrameRate"
	IncorrectPictureHash                Code = "IncorrectPictureHash"
	MismatchedPictureHashes             Code = "MismatchedPictureHashes"
	IncorrectSoundHash                  Code = "IncorrectSoundHash"
	MismatchedSoundHashes               Code = "MismatchedSoundHashes"
	EmptyAssetPath                      Code = "EmptyAssetPath"
	MissingAsset                        Code = "MissingAsset"
	MismatchedStandard                  Code = "MismatchedStandard"
	InvalidXml                          Code = "InvalidXml"
	MissingAssetmap                     Code = "MissingAssetmap"
	InvalidIntrinsicDuration             Code = "InvalidIntrinsicDuration"
	InvalidDuration                      Code = "InvalidDuration"
	InvalidPictureFrameSizeInBytes       Code = "InvalidPictureFrameSizeInBytes"
	NearlyInvalidPictureFrameSizeInBytes Code = "NearlyInvalidPictureFrameSizeInBytes"
	ExternalAsset                        Code = "ExternalAsset"
	InvalidStandard                      Code = "InvalidStandard"
	InvalidLanguage                      Code = "InvalidLanguage"
	InvalidPictureSizeInPixels           Code = "InvalidPictureSizeInPixels"
	InvalidPictureFrameRateFor2k         Code = "InvalidPictureFrameRateFor2k"
	InvalidPictureFrameRateFor4k         Code = "InvalidPictureFrameRateFor4k"
	InvalidPictureAssetResolutionFor3d   Code = "InvalidPictureAssetResolutionFor3d"
	InvalidClosedCaptionXmlSizeInBytes   Code = "InvalidClosedCaptionXmlSizeInBytes"
	InvalidTimedTextSizeInBytes          Code = "InvalidTimedTextSizeInBytes"
	InvalidTimedTextFontSizeInBytes      Code = "InvalidTimedTextFontSizeInBytes"
	MissingSubtitleLanguage              Code = "MissingSubtitleLanguage"
	MismatchedSubtitleLanguages          Code = "MismatchedSubtitleLanguages"
	MissingSubtitleStartTime             Code = "MissingSubtitleStartTime"
	InvalidSubtitleStartTime             Code = "InvalidSubtitleStartTime"
	InvalidSubtitleFirstTextTime         Code = "InvalidSubtitleFirstTextTime"
	InvalidSubtitleDuration              Code = "InvalidSubtitleDuration"
	InvalidSubtitleSpacing               Code = "InvalidSubtitleSpacing"
	InvalidSubtitleLineCount             Code = "InvalidSubtitleLineCount"
	NearlyInvalidSubtitleLineLength       Code = "NearlyInvalidSubtitleLineLength"
	InvalidSubtitleLineLength            Code = "InvalidSubtitleLineLength"
	InvalidClosedCaptionLineCount        Code = "InvalidClosedCaptionLineCount"
	InvalidClosedCaptionLineLength       Code = "InvalidClosedCaptionLineLength"
	InvalidSoundFrameRate                Code = "InvalidSoundFrameRate"
	MissingCplAnnotationText             Code = "MissingCplAnnotationText"
	MismatchedCplAnnotationText          Code = "MismatchedCplAnnotationText"
	MismatchedAssetDuration              Code = "MismatchedAssetDuration"
	MissingMainSubtitleFromSomeReels     Code = "MissingMainSubtitleFromSomeReels"
	MismatchedClosedCaptionAssetCounts   Code = "MismatchedClosedCaptionAssetCounts"
	MissingSubtitleEntryPoint            Code = "MissingSubtitleEntryPoint"
	IncorrectSubtitleEntryPoint          Code = "IncorrectSubtitleEntryPoint"
	MissingClosedCaptionEntryPoint       Code = "MissingClosedCaptionEntryPoint"
	IncorrectClosedCaptionEntryPoint     Code = "IncorrectClosedCaptionEntryPoint"
	MissingHash                          Code = "MissingHash"
	MissingFfecInFeature                 Code = "MissingFfecInFeature"
	MissingFfmcInFeature                 Code = "MissingFfmcInFeature"
	MissingFfoc                          Code = "MissingFfoc"
	MissingLfoc                          Code = "MissingLfoc"
	IncorrectFfoc                        Code = "IncorrectFfoc"
	IncorrectLfoc                        Code = "IncorrectLfoc"
	MissingCplMetadata                   Code = "MissingCplMetadata"
	MissingCplMetadataVersionNumber      Code = "MissingCplMetadataVersionNumber"
	MissingExtensionMetadata             Code = "MissingExtensionMetadata"
	InvalidExtensionMetadata             Code = "InvalidExtensionMetadata"
	UnsignedCplWithEncryptedContent       Code = "UnsignedCplWithEncryptedContent"
	UnsignedPklWithEncryptedContent       Code = "UnsignedPklWithEncryptedContent"
	MismatchedPklAnnotationTextWithCpl    Code = "MismatchedPklAnnotationTextWithCpl"
	PartiallyEncrypted                    Code = "PartiallyEncrypted"
	Cancelled                            Code = "Cancelled"
)

// Note is one verifier finding: a severity, a code, optional free text,
// and optional file/line context for interpolation by String.
type Note struct {
	Severity Severity
	Code     Code
	Text     string
	File     string
	Line     int
}

// String implements note_to_string (spec.md §7): a human-readable
// sentence ending in a period, with any contextual id/filename
// interpolated.
func (n Note) String() string {
	msg := string(n.Code)
	if n.Text != "" {
		msg = fmt.Sprintf("%s: %s", n.Code, n.Text)
	}
	if n.File != "" {
		if n.Line > 0 {
			msg = fmt.Sprintf("%s (%s:%d)", msg, n.File, n.Line)
		} else {
			msg = fmt.Sprintf("%s (%s)", msg, n.File)
		}
	}
	if msg == "" || msg[len(msg)-1] != '.' {
		msg += "."
	}
	return msg
}
