package api

import (
	"encoding/base64"
	"html/template"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/birdsong-go/birdsong/internal/classifier"
	"github.com/birdsong-go/birdsong/internal/errors"
	"github.com/birdsong-go/birdsong/internal/logger"
	"github.com/birdsong-go/birdsong/internal/myaudio"
	"github.com/birdsong-go/birdsong/internal/pipeline"
	"github.com/birdsong-go/birdsong/internal/species"
)

// UploadField is the multipart form field carrying the audio file.
const UploadField = "audio"

var errNoUpload = errors.NewStd("no audio file uploaded")

// PredictionResponse is one ranked species in API responses.
type PredictionResponse struct {
	Code       string  `json:"code"`
	Name       string  `json:"name"`
	Confidence float32 `json:"confidence"`
}

// IdentifyResponse is the JSON body of a successful /api/v1/identify.
type IdentifyResponse struct {
	RequestID  string               `json:"request_id"`
	Species    PredictionResponse   `json:"species"`
	Candidates []PredictionResponse `json:"candidates"`
	ImageURL   string               `json:"image_url,omitempty"`
	Notice     string               `json:"notice,omitempty"`
	Warning    string               `json:"warning,omitempty"`
}

// ErrorResponse is the JSON body of a failed API request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func (s *Server) newPageData() PageData {
	return PageData{
		Title:     PageTitle,
		Subtitle:  PageSubtitle,
		Prompt:    UploadPrompt,
		Provider:  s.providerName,
		Version:   s.buildInfo.GetVersion(),
		MaxUpload: s.config.BodyLimit,
	}
}

func (s *Server) handleIndex(c echo.Context) error {
	data := s.newPageData()
	data.Info = IdleNotice
	return c.Render(http.StatusOK, "index", data)
}

func (s *Server) handleIdentifyForm(c echo.Context) error {
	data := s.newPageData()

	buf, contentType, err := readUpload(c)
	if err != nil {
		if errors.Is(err, errNoUpload) {
			data.Info = IdleNotice
			return c.Render(http.StatusBadRequest, "index", data)
		}
		return err
	}
	data.Filename = buf.Filename

	res, err := s.identifier.Identify(c.Request().Context(), buf)
	if err != nil {
		status := statusFor(err)
		data.Error = userMessage(err, s.config.Debug)
		return c.Render(status, "index", data)
	}

	data.Result = res
	data.AudioURI = audioDataURI(buf, contentType)
	if res.Image != nil {
		data.ImageURI = template.URL(res.Image.DataURI()) //nolint:gosec // built from a decoded image
	}
	return c.Render(http.StatusOK, "index", data)
}

func (s *Server) handleIdentifyAPI(c echo.Context) error {
	buf, _, err := readUpload(c)
	if errors.Is(err, errNoUpload) {
		buf, err = readRawBody(c)
	}
	if err != nil {
		return err
	}
	if len(buf.Data) == 0 {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "no_upload",
			Message: errNoUpload.Error(),
			Code:    http.StatusBadRequest,
		})
	}

	res, err := s.identifier.Identify(c.Request().Context(), buf)
	if err != nil {
		status := statusFor(err)
		return c.JSON(status, ErrorResponse{
			Error:   errorCode(err),
			Message: userMessage(err, s.config.Debug),
			Code:    status,
		})
	}

	resp := IdentifyResponse{
		RequestID:  res.RequestID,
		Species:    toPredictionResponse(res.Prediction),
		Candidates: make([]PredictionResponse, 0, len(res.Candidates)),
		ImageURL:   res.ImageURL,
		Notice:     res.Notice,
		Warning:    res.Warning,
	}
	for _, p := range res.Candidates {
		resp.Candidates = append(resp.Candidates, toPredictionResponse(p))
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSpecies(c echo.Context) error {
	if s.labels == nil {
		return echo.NewHTTPError(http.StatusNotFound, "label map not configured")
	}
	return c.JSON(http.StatusOK, s.labels.Labels())
}

// readUpload reads the multipart audio field. The body limit middleware
// bounds how much is read.
func readUpload(c echo.Context) (myaudio.AudioBuffer, string, error) {
	fh, err := c.FormFile(UploadField)
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return myaudio.AudioBuffer{}, "", he
		}
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return myaudio.AudioBuffer{}, "", errNoUpload
		}
		return myaudio.AudioBuffer{}, "", echo.NewHTTPError(http.StatusBadRequest, "invalid upload").SetInternal(err)
	}

	data, err := readFileHeader(fh)
	if err != nil {
		return myaudio.AudioBuffer{}, "", echo.NewHTTPError(http.StatusBadRequest, "failed to read upload").SetInternal(err)
	}
	return myaudio.AudioBuffer{Data: data, Filename: fh.Filename}, fh.Header.Get(echo.HeaderContentType), nil
}

func readFileHeader(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			GetLogger().Debug("failed to close upload", logger.Error(cerr))
		}
	}()
	return io.ReadAll(f)
}

// readRawBody accepts the audio file as the request body, with an optional
// ?filename= format hint.
func readRawBody(c echo.Context) (myaudio.AudioBuffer, error) {
	data, err := io.ReadAll(c.Request().Body)
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return myaudio.AudioBuffer{}, he
		}
		return myaudio.AudioBuffer{}, echo.NewHTTPError(http.StatusBadRequest, "failed to read body").SetInternal(err)
	}
	return myaudio.AudioBuffer{Data: data, Filename: c.QueryParam("filename")}, nil
}

// statusFor maps pipeline errors to HTTP status codes. Shape mismatches and
// everything else are server faults.
func statusFor(err error) int {
	if errors.Is(err, myaudio.ErrDecode) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, myaudio.ErrDecode):
		return "undecodable_audio"
	case errors.Is(err, classifier.ErrShape):
		return "model_shape"
	default:
		return "internal"
	}
}

func userMessage(err error, debug bool) string {
	msg := "Identification failed. Please try again."
	if errors.Is(err, myaudio.ErrDecode) {
		msg = "The uploaded file could not be decoded as audio."
	}
	if debug {
		msg += " (" + err.Error() + ")"
	}
	return msg
}

// audioDataURI embeds the upload for the result page audio player.
func audioDataURI(buf myaudio.AudioBuffer, contentType string) template.URL {
	mediaType := myaudio.DetectFormat(buf.Data, buf.Filename).MIMEType()
	if mediaType == "application/octet-stream" && isAudioMediaType(contentType) {
		mediaType, _, _ = mime.ParseMediaType(contentType)
	}
	//nolint:gosec // base64 payload cannot break out of the attribute
	return template.URL("data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(buf.Data))
}

func isAudioMediaType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && strings.HasPrefix(mediaType, "audio/")
}

func toPredictionResponse(p species.Prediction) PredictionResponse {
	return PredictionResponse{Code: p.Code, Name: p.Name, Confidence: p.Confidence}
}

var _ Identifier = (*pipeline.Pipeline)(nil)
