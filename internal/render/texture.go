package render

import (
	"go.uber.org/zap"

	"github.com/kestrel3d/kestrel/internal/scene/component"
)

// Default texture ids. The cache pre-seeds these so a material with no
// textures still binds neutral PBR inputs: white albedo, flat normal,
// black metallic/emissive, gray roughness/occlusion.
const (
	DefaultWhite      = "default:white"
	DefaultFlatNormal = "default:normal"
	DefaultBlack      = "default:black"
	DefaultGray       = "default:gray"
)

// Texture is an immutable cache entry. Handle is the backend's identifier.
type Texture struct {
	ID     string
	Handle uint32
	Width  int
	Height int
}

// TextureCache maps string ids to loaded textures. Entries never mutate;
// re-inserting an id is rejected.
type TextureCache struct {
	log     *zap.Logger
	entries map[string]Texture
	next    uint32
}

func NewTextureCache(log *zap.Logger) *TextureCache {
	if log == nil {
		log = zap.NewNop()
	}
	c := &TextureCache{log: log, entries: make(map[string]Texture)}
	for _, id := range []string{DefaultWhite, DefaultFlatNormal, DefaultBlack, DefaultGray} {
		c.Insert(id, 1, 1)
	}
	return c
}

// Insert registers a texture; returns the entry. Duplicate ids keep the
// original entry.
func (c *TextureCache) Insert(id string, w, h int) Texture {
	if existing, ok := c.entries[id]; ok {
		c.log.Warn("texture id already cached", zap.String("texture", id))
		return existing
	}
	c.next++
	t := Texture{ID: id, Handle: c.next, Width: w, Height: h}
	c.entries[id] = t
	return t
}

// Lookup returns the entry for an id.
func (c *TextureCache) Lookup(id string) (Texture, bool) {
	t, ok := c.entries[id]
	return t, ok
}

func (c *TextureCache) Len() int { return len(c.entries) }

// TextureBindings are the six material slots in shader order.
type TextureBindings struct {
	Albedo    Texture
	Normal    Texture
	Metallic  Texture
	Roughness Texture
	Emissive  Texture
	Occlusion Texture
}

// Bind resolves the material's texture references against the cache. Each
// slot falls back to its neutral default; the returned flags mark only the
// slots where a real (non-default) texture was found.
func (c *TextureCache) Bind(m component.Material) (TextureBindings, uint32) {
	var flags uint32
	slot := func(id, fallback string, bit uint32) Texture {
		if id != "" {
			if t, ok := c.entries[id]; ok {
				flags |= bit
				return t
			}
			c.log.Debug("texture not cached, using default",
				zap.String("texture", id))
		}
		t := c.entries[fallback]
		return t
	}
	b := TextureBindings{
		Albedo:    slot(m.AlbedoTexture, DefaultWhite, TexFlagAlbedo),
		Normal:    slot(m.NormalTexture, DefaultFlatNormal, TexFlagNormal),
		Metallic:  slot(m.MetallicTexture, DefaultBlack, TexFlagMetallic),
		Roughness: slot(m.RoughnessTexture, DefaultGray, TexFlagRoughness),
		Emissive:  slot(m.EmissiveTexture, DefaultBlack, TexFlagEmissive),
		Occlusion: slot(m.OcclusionTexture, DefaultWhite, TexFlagOcclusion),
	}
	return b, flags
}
