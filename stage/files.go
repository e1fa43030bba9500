package stage

import (
	"mime"
	"path"
	"strings"
)

// AssetType marks the role of a file within an NFT.
type AssetType string

const (
	AssetPrimary    AssetType = "primary"
	AssetHidden     AssetType = "hidden"
	AssetExperience AssetType = "experience"
	AssetPreview    AssetType = "preview"
)

// Category of a collection level file.
type Category string

const (
	CategoryCollection Category = "collection"
	CategoryDapp       Category = "dapp"
	CategoryStage      Category = "stage"
)

// File references one physical asset.
type File struct {
	Filename    string    `json:"filename"`
	Path        string    `json:"path"`
	Size        int64     `json:"size,omitempty"`
	LibraryID   string    `json:"libraryId,omitempty"`
	Title       string    `json:"title,omitempty"`
	AssetType   AssetType `json:"assetType,omitempty"`
	ContentType string    `json:"contentType,omitempty"`
	Immutable   bool      `json:"immutable,omitempty"`

	// NewLibrary is false when the file replaces a library that already
	// exists in the canister, in which case LibraryID must be given. Unset
	// means new.
	NewLibrary *bool `json:"isNewLibrary,omitempty"`

	// Content is populated by materialization.
	Content []byte `json:"-"`
}

// Materialized reports whether the content of the file has been loaded.
func (f *File) Materialized() bool {
	return f.Content != nil
}

func (f *File) isNewLibrary() bool {
	return f.NewLibrary == nil || *f.NewLibrary
}

// contentType resolves the media type of the file, preferring the explicit
// override. Parameters such as charset are dropped.
func (f *File) contentType() (string, error) {
	ct := f.ContentType
	if ct == "" {
		ct = mime.TypeByExtension(strings.ToLower(path.Ext(f.Filename)))
	}
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct == "" {
		return "", configErrorf(ErrMissingMimeType, "file %s", f.Filename)
	}
	return ct, nil
}

// CollectionFile is a file staged at the collection level.
type CollectionFile struct {
	File
	Category Category `json:"category"`
}

// NFT is one NFT definition, instantiated Quantity times.
type NFT struct {
	Files []File `json:"files"`
	// CollectionFileReferences names, by filename, collection files that the
	// NFT shares instead of uploading its own copy.
	CollectionFileReferences []string `json:"collectionFileReferences,omitempty"`
	Quantity                 int      `json:"quantity,omitempty"`
}

func (n *NFT) quantity() int {
	if n.Quantity < 1 {
		return 1
	}
	return n.Quantity
}

// LibraryFile pairs a library id with the file uploaded under it.
type LibraryFile struct {
	LibraryID string
	File      File
}

func init() {
	// Types commonly found in collections that the builtin table misses.
	for ext, typ := range map[string]string{
		".mp4":  "video/mp4",
		".webm": "video/webm",
		".mov":  "video/quicktime",
		".mp3":  "audio/mpeg",
		".wav":  "audio/wav",
		".glb":  "model/gltf-binary",
		".gltf": "model/gltf+json",
		".txt":  "text/plain",
		".md":   "text/markdown",
		".ico":  "image/x-icon",
	} {
		_ = mime.AddExtensionType(ext, typ)
	}
}
