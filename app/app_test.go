package app

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ORIGYN-SA/mintgo/canister"
	"github.com/ORIGYN-SA/mintgo/canister/canistertest"
	"github.com/ORIGYN-SA/mintgo/internal/testutil"
	"github.com/ORIGYN-SA/mintgo/stage"
)

const creator = "6i6da-t3dfv-vteyg-v5agl-tpgrm-63p4y-t5nmm-gi7nl-o72zu-jd3sc-7qe"

func TestMainHelp(t *testing.T) {
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()
	os.Args = []string{"mintgo", "help"}

	var (
		output    bytes.Buffer
		errOutput bytes.Buffer
	)
	err := Run(&output, &errOutput)

	if err != nil {
		t.Error(err)
	}
	if have, want := output.String(), "Available Commands"; !strings.Contains(have, want) {
		t.Errorf("expected output %s not found in output: %s", want, have)
	}
	if errOutput.String() != "" {
		t.Errorf("error output is not empty")
	}
}

func TestMainUnknownCommand(t *testing.T) {
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()
	os.Args = []string{"mintgo", "unknown"}

	err := Run(ioutil.Discard, ioutil.Discard)

	if err == nil {
		t.Error("error expected")
	}
}

// execute runs the command line against an in-memory filesystem.
func execute(t *testing.T, memfs afero.Fs, args ...string) (string, error) {
	t.Helper()
	oldFs := fs
	fs = memfs
	defer func() { fs = oldFs }()

	var output bytes.Buffer
	cmd := RootCommand(&output, ioutil.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return output.String(), err
}

// stagingFs holds a stage configuration and the files it refers to.
func stagingFs(t *testing.T) afero.Fs {
	memfs := afero.NewMemMapFs()
	files := map[string]string{
		"/work/collection/logo.png":    "logo",
		"/work/collection/wallet.html": "<html></html>",
		"/work/collection/notes.txt":   "not staged",
		"/work/nfts/brain.png":         "brain",
	}
	for path, content := range files {
		require.NoError(t, afero.WriteFile(memfs, path, []byte(content), 0644))
	}
	require.NoError(t, afero.WriteFile(memfs, "/work/stage.yaml", testutil.Fixture(t, "collection.yaml"), 0644))
	return memfs
}

func useCanister(t *testing.T, srv *canistertest.Server) {
	t.Setenv("MINTGO_CANISTER_HOST", srv.URL)
	t.Setenv("MINTGO_CANISTER_ID", canistertest.CanisterID)
	t.Setenv("MINTGO_CANISTER_PRINCIPAL", creator)
}

func TestValidate(t *testing.T) {
	memfs := stagingFs(t)
	require.NoError(t, afero.WriteFile(memfs, "/work/invalid.json", testutil.Fixture(t, "invalid.json"), 0644))

	out, err := execute(t, memfs, "validate", "-f", "/work/stage.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, `Collection "bm", 3 collection files, 1 NFT definitions, 2 NFTs.`)

	out, err = execute(t, memfs, "validate", "-f", "/work/invalid.json")
	assert.Error(t, err)
	assert.Contains(t, out, "The stage configuration is invalid!")

	_, err = execute(t, memfs, "validate")
	assert.EqualError(t, err, "parameter empty")
}

func TestStageCollection_DryRun(t *testing.T) {
	out, err := execute(t, stagingFs(t), "stage", "collection", "-f", "/work/stage.yaml", "--dry-run")
	require.NoError(t, err)

	var cfg struct {
		Summary stage.Summary `json:"summary"`
		NFTs    []json.RawMessage
	}
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, 2, cfg.Summary.TotalNFTCount)
	assert.Equal(t, 1, cfg.Summary.TotalNFTDefinitionCount)
	assert.Len(t, cfg.NFTs, 2)
}

func TestStageCollection(t *testing.T) {
	srv := canistertest.NewServer(t)
	useCanister(t, srv)

	out, err := execute(t, stagingFs(t), "stage", "collection", "-f", "/work/stage.yaml")
	require.NoError(t, err)

	result := &stage.StageResult{}
	require.NoError(t, json.Unmarshal([]byte(out), result))
	assert.Equal(t, []string{"", "bm-3", "bm-4"}, result.Tokens)
	assert.Empty(t, result.Failures())
	assert.EqualValues(t, len("logo")+len("<html></html>")+2*len("brain"), result.TotalFileSize)

	assert.Equal(t, "brain", string(srv.Content("bm-4", "brain.png")))
	assert.Nil(t, srv.Content("", "notes.txt"))

	// Further NFTs continue the numbering of the collection.
	memfs := stagingFs(t)
	require.NoError(t, afero.WriteFile(memfs, "/work/more.yaml", []byte("nfts:\n  - files:\n      - filename: brain.png\n        path: nfts/brain.png\n"), 0644))
	out, err = execute(t, memfs, "stage", "nfts", "-f", "/work/more.yaml", "--soulbound=false")
	require.NoError(t, err)
	result = &stage.StageResult{}
	require.NoError(t, json.Unmarshal([]byte(out), result))
	assert.Equal(t, []string{"bm-5"}, result.Tokens)
	meta, ok := srv.Metadata("bm-5")
	require.True(t, ok)
	soulbound, _ := meta.Bool("is_soulbound")
	assert.False(t, soulbound)

	out, err = execute(t, memfs, "query", "collection")
	require.NoError(t, err)
	info := &canister.CollectionInfo{}
	require.NoError(t, json.Unmarshal([]byte(out), info))
	assert.Equal(t, "bm", info.ID)
	assert.Equal(t, 5, info.LastNFTIndex)

	out, err = execute(t, memfs, "mint", "bm-3", "bm-4")
	require.NoError(t, err)
	assert.Equal(t, "bm-3\nbm-4\n", out)
}

func TestStageCollection_Failures(t *testing.T) {
	srv := canistertest.NewServer(t)
	useCanister(t, srv)
	srv.Handle("stage_library_nft_origyn", canistertest.Declare(&canister.Error{Number: 9, Text: "full", Kind: "storage"}))

	out, err := execute(t, stagingFs(t), "stage", "collection", "-f", "/work/stage.yaml")
	assert.EqualError(t, err, "4 libraries could not be staged")

	result := &stage.StageResult{}
	require.NoError(t, json.Unmarshal([]byte(out), result))
	assert.Len(t, result.Failures(), 4)
}

func TestStageCollection_Declined(t *testing.T) {
	srv := canistertest.NewServer(t)
	useCanister(t, srv)
	srv.Handle("stage_nft_origyn", canistertest.Declare(&canister.Error{Number: 2000, Text: "unauthorized"}))

	out, err := execute(t, stagingFs(t), "stage", "collection", "-f", "/work/stage.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unauthorized")
	assert.Empty(t, out)
}

func TestQuery_NoCanister(t *testing.T) {
	t.Setenv("MINTGO_CANISTER_ID", "")
	_, err := execute(t, afero.NewMemMapFs(), "query", "cycles")
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	c := Config{}
	c.Canister.Environment = "mainnet"
	assert.NoError(t, c.Validate())
	assert.Equal(t, productionHost, c.Host())

	c.Canister.Host = "http://gateway:8080"
	assert.Equal(t, "http://gateway:8080", c.Host())

	c.Canister.Environment = "moon"
	assert.Error(t, c.Validate())

	c.Canister.Environment = ""
	c.Canister.Principal = "not a principal!"
	assert.Error(t, c.Validate())
}

func TestParseEnd(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	end, err := parseEnd("48h", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(48*time.Hour), end)

	end, err = parseEnd("2024-02-01T00:00:00Z", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), end)

	_, err = parseEnd("-1h", now)
	assert.Error(t, err)
	_, err = parseEnd("tomorrow", now)
	assert.Error(t, err)
}
