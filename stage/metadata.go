package stage

import (
	"strings"

	"github.com/ORIGYN-SA/mintgo/candy"
)

const (
	locationCanister   = "canister"
	locationCollection = "collection"

	propImmutableLibrary = "com.origyn.immutable_library"
)

// Meta is one staging unit: the metadata document of a token (or of the
// collection, whose id is empty) and the libraries it introduces.
type Meta struct {
	Metadata candy.Class   `json:"metadata"`
	Library  []LibraryFile `json:"-"`
}

// TokenID returns the id property of the document.
func (m *Meta) TokenID() string {
	id, _ := m.Metadata.Text("id")
	return strings.TrimSpace(id)
}

// resource is a file about to be referenced from a library property.
type resource struct {
	info FileInfo
	file *File
}

// resourceClass describes one library entry. Every property but read is
// immutable.
func resourceClass(info FileInfo, f *File, sort uint64) (candy.Class, error) {
	contentType, err := f.contentType()
	if err != nil {
		return nil, err
	}
	cls := candy.Class{
		candy.TextProp("library_id", info.LibraryID, true),
		candy.TextProp("title", info.Title, true),
		candy.TextProp("location_type", locationCanister, true),
		candy.TextProp("location", info.ResourceURL, true),
		candy.TextProp("content_type", contentType, true),
		candy.TextProp("content_hash", Hash(f.Content), true),
		candy.NatProp("size", uint64(f.Size), true),
		candy.NatProp("sort", sort, true),
		candy.TextProp("read", "public", false),
	}
	if f.Immutable {
		cls = append(cls, candy.BoolProp(propImmutableLibrary, true, true))
	}
	return cls, nil
}

// resourceReferences turns resource classes into the entries of a library
// property. A library id is looked up among the unit's own libraries first,
// then among the collection's; the location type tells which one matched.
func resourceReferences(classes []candy.Class, own, collection []LibraryFile) ([]candy.Class, error) {
	refs := make([]candy.Class, 0, len(classes))
	for _, cls := range classes {
		libraryID, ok := cls.Text("library_id")
		if !ok {
			continue
		}

		locationType := locationCanister
		if !hasLibrary(own, libraryID) {
			if !hasLibrary(collection, libraryID) {
				return nil, configErrorf(ErrLibraryIDNotFound, "%s in NFT or collection libraries", libraryID)
			}
			locationType = locationCollection
		}

		title, ok1 := cls.Text("title")
		location, ok2 := cls.Text("location")
		contentType, ok3 := cls.Text("content_type")
		contentHash, ok4 := cls.Text("content_hash")
		size, ok5 := cls.Nat("size")
		sort, ok6 := cls.Nat("sort")
		if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6) {
			return nil, configErrorf(ErrMissingProperties, "library %s", libraryID)
		}

		ref := candy.Class{
			candy.TextProp("library_id", libraryID, true),
			candy.TextProp("title", title, true),
			candy.TextProp("location_type", locationType, true),
			candy.TextProp("location", location, true),
			candy.TextProp("content_type", contentType, true),
			candy.TextProp("content_hash", contentHash, true),
			candy.NatProp("size", size, true),
			candy.NatProp("sort", sort, true),
			candy.TextProp("read", "public", false),
		}
		if p, ok := cls.Get(propImmutableLibrary); ok {
			ref = append(ref, p)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func hasLibrary(libs []LibraryFile, libraryID string) bool {
	for _, l := range libs {
		if l.LibraryID == libraryID {
			return true
		}
	}
	return false
}

// assetProperties points {type}_asset at the first file of each asset type.
func assetProperties(resources []resource) []candy.Property {
	seen := map[AssetType]bool{}
	var props []candy.Property
	for _, r := range resources {
		t := r.file.AssetType
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		props = append(props, candy.TextProp(string(t)+"_asset", r.info.LibraryID, true))
	}
	return props
}

func (s *Settings) owner() string {
	if s.Args.OwnerID != "" {
		return s.Args.OwnerID
	}
	return s.Args.CanisterID
}

// appsProperty is the namespaced application block: public read access,
// write and permission changes restricted to the creator.
func (s *Settings) appsProperty() candy.Property {
	ns := s.Args.Namespace
	allowCreator := func() candy.Class {
		return candy.Class{
			candy.TextProp("type", "allow", false),
			candy.ArrayProp("list", candy.Array{candy.Principal(s.Args.CreatorPrincipal)}, false),
		}
	}
	app := candy.Class{
		candy.TextProp("app_id", ns, false),
		candy.TextProp("read", "public", false),
		candy.ClassProp("write", allowCreator(), false),
		candy.ClassProp("permissions", allowCreator(), false),
		candy.ClassProp("data", candy.Class{
			candy.TextProp(ns+".name", s.Args.CollectionDisplayName, false),
			candy.NatProp(ns+".total_in_collection", uint64(s.Args.totalInstances()), false),
			candy.TextProp(ns+".collectionid", s.Args.CollectionID, false),
			candy.PrincipalProp(ns+".creator_principal", s.Args.CreatorPrincipal, false),
		}, false),
	}
	return candy.ArrayProp("__apps", candy.ClassArray([]candy.Class{app}), false)
}

// CollectionMeta builds the collection document. Collection and dapp files
// become collection libraries, sorted in input order.
func (s *Settings) CollectionMeta() (Meta, error) {
	var (
		resources []resource
		classes   []candy.Class
		sort      uint64 = 1
	)
	s.CollectionLibraries = nil
	for i := range s.Args.CollectionFiles {
		cf := &s.Args.CollectionFiles[i]
		if cf.Category != CategoryCollection && cf.Category != CategoryDapp {
			continue
		}
		info, err := s.collectionFile(cf)
		if err != nil {
			return Meta{}, err
		}
		cls, err := resourceClass(info, &cf.File, sort)
		if err != nil {
			return Meta{}, err
		}
		s.TotalFileSize += cf.Size
		resources = append(resources, resource{info: info, file: &cf.File})
		classes = append(classes, cls)
		s.CollectionLibraries = append(s.CollectionLibraries, LibraryFile{LibraryID: info.LibraryID, File: cf.File})
		sort++
	}

	refs, err := resourceReferences(classes, s.CollectionLibraries, s.CollectionLibraries)
	if err != nil {
		return Meta{}, err
	}

	props := candy.Class{candy.TextProp("id", "", true)}
	props = append(props, assetProperties(resources)...)
	props = append(props,
		candy.TextProp("owner", s.owner(), false),
		candy.ArrayProp("library", candy.ClassArray(refs), true),
		s.appsProperty(),
	)
	return Meta{Metadata: props, Library: s.CollectionLibraries}, nil
}

// NFTMetas expands the NFT definitions into one document per token. It must
// run after CollectionMeta so that shared files can be resolved.
func (s *Settings) NFTMetas() ([]Meta, error) {
	var metas []Meta
	running := 0
	for i := range s.Args.NFTs {
		nft := &s.Args.NFTs[i]
		for j := 0; j < nft.quantity(); j++ {
			nftIndex := s.Args.StartNFTIndex + running
			meta, err := s.nftMeta(nft, s.Args.tokenID(nftIndex), nftIndex)
			if err != nil {
				return nil, err
			}
			metas = append(metas, meta)
			running++
		}
	}
	return metas, nil
}

func (s *Settings) nftMeta(nft *NFT, tokenID string, nftIndex int) (Meta, error) {
	var (
		resources []resource
		classes   []candy.Class
		libraries []LibraryFile
		sort      uint64 = 1
	)
	for k := range nft.Files {
		f := &nft.Files[k]
		info, err := s.nftFile(f, tokenID, nftIndex)
		if err != nil {
			return Meta{}, err
		}
		cls, err := resourceClass(info, f, sort)
		if err != nil {
			return Meta{}, err
		}
		s.TotalFileSize += f.Size
		resources = append(resources, resource{info: info, file: f})
		classes = append(classes, cls)
		libraries = append(libraries, LibraryFile{LibraryID: info.LibraryID, File: *f})
		sort++
	}

	// Shared collection files take a sort slot but are neither uploaded
	// again nor counted in the staged size.
	for _, name := range nft.CollectionFileReferences {
		cf := s.collectionFileNamed(name)
		if cf == nil {
			return Meta{}, configErrorf(ErrLibraryIDNotFound, "%s in NFT or collection libraries (token %s)", strings.ToLower(name), tokenID)
		}
		info, err := s.collectionFile(cf)
		if err != nil {
			return Meta{}, err
		}
		cls, err := resourceClass(info, &cf.File, sort)
		if err != nil {
			return Meta{}, err
		}
		resources = append(resources, resource{info: info, file: &cf.File})
		classes = append(classes, cls)
		sort++
	}

	refs, err := resourceReferences(classes, libraries, s.CollectionLibraries)
	if err != nil {
		return Meta{}, err
	}

	props := candy.Class{candy.TextProp("id", tokenID, true)}
	props = append(props, assetProperties(resources)...)
	props = append(props,
		candy.TextProp("owner", s.owner(), false),
		candy.BoolProp("is_soulbound", s.Args.Soulbound, true),
		candy.ArrayProp("library", candy.ClassArray(refs), true),
		s.appsProperty(),
	)
	return Meta{Metadata: props, Library: libraries}, nil
}

func (s *Settings) collectionFileNamed(name string) *CollectionFile {
	for i := range s.Args.CollectionFiles {
		if s.Args.CollectionFiles[i].Filename == name {
			return &s.Args.CollectionFiles[i]
		}
	}
	return nil
}
