package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"image/color"
	"math"
	"os"
	"strings"
	"unicode"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/dengue-gen/denguegen-backend/internal/logger"
	"github.com/dengue-gen/denguegen-backend/internal/types"
)

const (
	avatarCanvas      = 512
	DefaultAvatarSize = 128
	MinAvatarSize     = 16
	MaxAvatarSize     = 512
)

// Brand palette used when no colors file is configured.
var defaultAvatarColors = []color.NRGBA{
	{R: 0x00, G: 0x5C, B: 0xFF, A: 0xFF},
	{R: 0x0E, G: 0x9F, B: 0x6E, A: 0xFF},
	{R: 0xE0, G: 0x4F, B: 0x5F, A: 0xFF},
	{R: 0xF5, G: 0x9E, B: 0x0B, A: 0xFF},
	{R: 0x7C, G: 0x3A, B: 0xED, A: 0xFF},
	{R: 0x0F, G: 0x76, B: 0x6E, A: 0xFF},
}

// AvatarService renders round PNG avatars with the initials of a chat.
type AvatarService interface {
	GenerateChatAvatar(chat types.Chat, size int) (bytes.Buffer, error)
}

type avatarService struct {
	log      *logger.Logger
	bgColors []color.NRGBA
	fontFace font.Face
}

// NewAvatarService loads the colors from colorsPath and the font from
// fontPath. Empty paths fall back to the built-in palette and Go Regular.
func NewAvatarService(log *logger.Logger, colorsPath, fontPath string) (AvatarService, error) {
	serviceLog := log.With("service", "AvatarService")

	bgColors := defaultAvatarColors
	if colorsPath != "" {
		serviceLog.Info("Loading avatar colors from JSON file", "path", colorsPath)
		loaded, err := loadColorsFromFile(colorsPath)
		if err != nil {
			return nil, fmt.Errorf("could not load avatar colors: %w", err)
		}
		if len(loaded) > 0 {
			bgColors = loaded
		}
	}

	var (
		face font.Face
		err  error
	)
	if fontPath != "" {
		serviceLog.Info("Loading avatar font from TTF file", "font", fontPath)
		face, err = loadFontFace(fontPath, 206)
	} else {
		face, err = parseFontFace(goregular.TTF, 206)
	}
	if err != nil {
		return nil, fmt.Errorf("could not load avatar font: %w", err)
	}

	return &avatarService{
		log:      serviceLog,
		bgColors: bgColors,
		fontFace: face,
	}, nil
}

func (as *avatarService) GenerateChatAvatar(chat types.Chat, size int) (bytes.Buffer, error) {
	var buf bytes.Buffer
	if size < MinAvatarSize || size > MaxAvatarSize {
		return buf, fmt.Errorf("avatar size %d out of range [%d, %d]", size, MinAvatarSize, MaxAvatarSize)
	}

	dc := gg.NewContext(avatarCanvas, avatarCanvas)
	half := float64(avatarCanvas) / 2

	// Circular mask so the final image is round.
	dc.DrawCircle(half, half, half)
	dc.Clip()

	base := as.colorFor(chat.ID)
	dc.SetColor(lightenOrDarken(base, -0.12))
	dc.DrawRectangle(0, 0, avatarCanvas, avatarCanvas)
	dc.Fill()
	dc.SetColor(base)
	dc.DrawCircle(half, half, half-24)
	dc.Fill()

	initials := computeInitials(chat)
	dc.SetFontFace(as.fontFace)
	tw, th := dc.MeasureString(initials)
	dc.SetColor(color.White)
	dc.DrawString(initials, half-(tw/2), half+(th/2)-10)

	img := imaging.Resize(dc.Image(), size, size, imaging.Lanczos)
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		as.log.Warn("Failed to encode chat avatar", "chatID", chat.ID, "error", err)
		return buf, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf, nil
}

// colorFor picks a stable palette entry so a chat keeps its color.
func (as *avatarService) colorFor(id string) color.NRGBA {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return as.bgColors[int(h.Sum32()%uint32(len(as.bgColors)))]
}

//----------------------------------------------------------------------------------------
// Helpers
//----------------------------------------------------------------------------------------

// computeInitials takes the first letter of the first two words of the chat
// name. The assistant chat always shows DG.
func computeInitials(chat types.Chat) string {
	if chat.ID == types.AssistantChatID {
		return "DG"
	}
	var out []rune
	for _, word := range strings.Fields(chat.Name) {
		for _, r := range word {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				out = append(out, unicode.ToUpper(r))
				break
			}
		}
		if len(out) == 2 {
			break
		}
	}
	if len(out) == 0 {
		return "?"
	}
	return string(out)
}

func lightenOrDarken(c color.NRGBA, fraction float64) color.NRGBA {
	clamp := func(v float64) uint8 {
		return uint8(math.Max(0, math.Min(255, v)))
	}
	delta := 255.0 * fraction
	return color.NRGBA{
		R: clamp(float64(c.R) + delta),
		G: clamp(float64(c.G) + delta),
		B: clamp(float64(c.B) + delta),
		A: c.A,
	}
}

func loadColorsFromFile(jsonPath string) ([]color.NRGBA, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("read file error: %w", err)
	}
	var colors []color.NRGBA
	if err := json.Unmarshal(data, &colors); err != nil {
		return nil, fmt.Errorf("json unmarshal error: %w", err)
	}
	return colors, nil
}

func loadFontFace(fontPath string, size float64) (font.Face, error) {
	fontBytes, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read font file: %w", err)
	}
	return parseFontFace(fontBytes, size)
}

func parseFontFace(fontBytes []byte, size float64) (font.Face, error) {
	parsedFont, err := truetype.Parse(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TTF: %w", err)
	}
	return truetype.NewFace(parsedFont, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	}), nil
}
