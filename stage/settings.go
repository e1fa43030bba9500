package stage

import (
	"sort"
	"strconv"
	"strings"
)

// Args describes a collection to stage.
type Args struct {
	Environment           Environment      `json:"environment,omitempty"`
	UseProxy              bool             `json:"useProxy,omitempty"`
	CanisterID            string           `json:"nftCanisterId"`
	CollectionID          string           `json:"collectionId"`
	CollectionDisplayName string           `json:"collectionDisplayName"`
	TokenPrefix           string           `json:"tokenPrefix"`
	CreatorPrincipal      string           `json:"creatorPrincipal"`
	OwnerID               string           `json:"nftOwnerId,omitempty"`
	Namespace             string           `json:"namespace"`
	Soulbound             bool             `json:"soulbound,omitempty"`
	StartNFTIndex         int              `json:"startNftIndex,omitempty"`
	CollectionFiles       []CollectionFile `json:"collectionFiles"`
	NFTs                  []NFT            `json:"nfts"`
}

// Validate checks the fields every staging run needs.
func (a *Args) Validate() error {
	var missing []string
	for name, v := range map[string]string{
		"nftCanisterId":    a.CanisterID,
		"collectionId":     a.CollectionID,
		"creatorPrincipal": a.CreatorPrincipal,
		"namespace":        a.Namespace,
	} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return configErrorf(ErrInvalidArgs, "missing %s", strings.Join(missing, ", "))
	}
	if _, err := ParseEnvironment(string(a.Environment)); err != nil {
		return configErrorf(ErrInvalidArgs, "%v", err)
	}
	if a.StartNFTIndex < 0 {
		return configErrorf(ErrInvalidArgs, "negative startNftIndex %d", a.StartNFTIndex)
	}
	return nil
}

func (a *Args) tokenID(nftIndex int) string {
	return a.TokenPrefix + strconv.Itoa(nftIndex)
}

func (a *Args) resourceURL(name, tokenID string) string {
	return ResourceURL(a.Environment, a.UseProxy, a.CanisterID, name, tokenID)
}

// totalInstances is the number of tokens the NFT definitions expand to.
func (a *Args) totalInstances() int {
	n := 0
	for i := range a.NFTs {
		n += a.NFTs[i].quantity()
	}
	return n
}

// FileInfo is where and under which name a file is staged.
type FileInfo struct {
	Title       string `json:"title"`
	LibraryID   string `json:"libraryId"`
	ResourceURL string `json:"resourceUrl"`
	FilePath    string `json:"filePath"`
}

// Settings is the working state of one staging run. It is owned by a single
// run and never shared.
type Settings struct {
	Args *Args `json:"args"`

	// FileMap indexes every staged file by its resource URL. A file that is
	// part of several tokens appears once per token.
	FileMap map[string]FileInfo `json:"fileMap"`

	CollectionLibraries []LibraryFile `json:"-"`
	TotalFileSize       int64         `json:"totalFileSize"`
}

// NewSettings builds the file map for args.
func NewSettings(args *Args) (*Settings, error) {
	if err := args.Validate(); err != nil {
		return nil, err
	}
	s := &Settings{
		Args:    args,
		FileMap: map[string]FileInfo{},
	}
	titles := map[string]string{}
	for i := range args.CollectionFiles {
		cf := &args.CollectionFiles[i]
		info, err := s.collectionFile(cf)
		if err != nil {
			return nil, err
		}
		if other, ok := titles[info.Title]; ok {
			return nil, configErrorf(ErrDuplicateTitle, "%q is used by %s and %s", info.Title, other, cf.Path)
		}
		titles[info.Title] = cf.Path
		s.FileMap[info.ResourceURL] = info
	}

	running := 0
	for i := range args.NFTs {
		nft := &args.NFTs[i]
		for j := 0; j < nft.quantity(); j++ {
			nftIndex := args.StartNFTIndex + running
			tokenID := args.tokenID(nftIndex)
			for k := range nft.Files {
				info, err := s.nftFile(&nft.Files[k], tokenID, nftIndex)
				if err != nil {
					return nil, err
				}
				s.FileMap[info.ResourceURL] = info
			}
			running++
		}
	}
	return s, nil
}

func libraryIDOf(f *File) (string, error) {
	if f.LibraryID != "" {
		return f.LibraryID, nil
	}
	if !f.isNewLibrary() {
		return "", configErrorf(ErrMissingLibraryID, "file %s refers to an existing library", f.Filename)
	}
	return strings.ToLower(f.Filename), nil
}

// collectionFile names a collection level file. Dapps lose their extension
// and are titled after the app.
func (s *Settings) collectionFile(cf *CollectionFile) (FileInfo, error) {
	libraryID, err := libraryIDOf(&cf.File)
	if err != nil {
		return FileInfo{}, err
	}
	title := cf.Title
	if title == "" {
		title = cf.Filename
	}
	if cf.Category == CategoryDapp {
		if cf.LibraryID == "" {
			libraryID = trimExt(libraryID)
		}
		if cf.Title == "" {
			title = trimExt(title) + " dApp"
		}
	}
	return FileInfo{
		Title:       title,
		LibraryID:   libraryID,
		ResourceURL: s.Args.resourceURL(libraryID, ""),
		FilePath:    cf.Path,
	}, nil
}

func (s *Settings) nftFile(f *File, tokenID string, nftIndex int) (FileInfo, error) {
	libraryID, err := libraryIDOf(f)
	if err != nil {
		return FileInfo{}, err
	}
	title := f.Title
	if title == "" {
		title = s.Args.CollectionDisplayName + " - " + strconv.Itoa(nftIndex)
	}
	return FileInfo{
		Title:       title,
		LibraryID:   libraryID,
		ResourceURL: s.Args.resourceURL(libraryID, tokenID),
		FilePath:    f.Path,
	}, nil
}

// trimExt drops the extension of name, unless name starts with the only dot.
func trimExt(name string) string {
	if i := strings.LastIndex(name, "."); i > 0 {
		return name[:i]
	}
	return name
}

// distinctFiles counts the distinct file paths of the file map.
func (s *Settings) distinctFiles() int {
	paths := map[string]struct{}{}
	for _, info := range s.FileMap {
		paths[info.FilePath] = struct{}{}
	}
	return len(paths)
}
