// Package canistertest provides an in-memory canister for tests.
//
// The server speaks the same CBOR over HTTP protocol as the gateway. It keeps
// the metadata documents it is given so that read calls (nft_origyn,
// collection_nft_origyn) reflect what was staged, records every call and lets
// tests override any method.
package canistertest

import (
	"net/http"
	"net/http/httptest"
	"reflect"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/fxamacker/cbor/v2"

	"github.com/ORIGYN-SA/mintgo/candy"
	"github.com/ORIGYN-SA/mintgo/canister"
)

// CanisterID of the fake canister.
const CanisterID = "rrkah-fqaaa-aaaaa-aaaaq-cai"

var decMode cbor.DecMode

func init() {
	var err error
	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]interface{}(nil)),
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

// Call is a recorded canister call.
type Call struct {
	Sender string      `cbor:"sender"`
	Method string      `cbor:"method"`
	Arg    interface{} `cbor:"arg"`
}

// Handler answers a call. Returning an error makes the server reply with a
// 503 status, i.e. a transport failure from the client's point of view.
type Handler func(Call) (*canister.Result, error)

// Server is a fake canister.
type Server struct {
	*httptest.Server

	t        testing.TB
	mu       sync.Mutex
	calls    []Call
	handlers map[string]Handler
	metadata map[string]candy.Class
	chunks   map[string][]byte
}

// NewServer starts a fake canister. It is closed when the test ends.
func NewServer(t testing.TB) *Server {
	s := &Server{
		t:        t,
		handlers: map[string]Handler{},
		metadata: map[string]candy.Class{},
		chunks:   map[string][]byte{},
	}
	s.handlers["stage_nft_origyn"] = s.stage
	s.handlers["stage_library_nft_origyn"] = s.stageLibrary
	s.handlers["nft_origyn"] = s.nft
	s.handlers["collection_nft_origyn"] = s.collection
	s.handlers["mint_nft_origyn"] = func(c Call) (*canister.Result, error) {
		args, _ := c.Arg.([]interface{})
		if len(args) == 0 {
			return canister.Failed(&canister.Error{Number: 1, Text: "missing token id"}), nil
		}
		return canister.OK(args[0])
	}

	s.Server = httptest.NewServer(http.HandlerFunc(s.serveHTTP))
	t.Cleanup(s.Close)
	return s
}

// Client returns a canister client connected to the server.
func (s *Server) Client(opts ...canister.ClientOption) *canister.Client {
	c, err := canister.New(s.Server.Client(), s.URL, CanisterID, opts...)
	if err != nil {
		s.t.Fatal(err)
	}
	return c
}

// Handle overrides the handler of a method.
func (s *Server) Handle(method string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = h
}

// Calls returns the calls received for method, or every call when method is
// empty.
func (s *Server) Calls(method string) []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	calls := []Call{}
	for _, c := range s.calls {
		if method == "" || c.Method == method {
			calls = append(calls, c)
		}
	}
	return calls
}

// Metadata returns the document staged for the given token id.
func (s *Server) Metadata(tokenID string) (candy.Class, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.metadata[tokenID]
	return m, ok
}

// Put stores a metadata document as if it had been staged.
func (s *Server) Put(tokenID string, metadata candy.Class) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metadata[tokenID] = metadata
}

// Content returns the bytes received for a library.
func (s *Server) Content(tokenID, libraryID string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chunks[tokenID+"/"+libraryID]
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if r.Method != http.MethodPost || len(parts) != 4 || parts[0] != "api" || parts[1] != "canister" {
		http.NotFound(w, r)
		return
	}
	if parts[2] != CanisterID {
		http.Error(w, "unknown canister", http.StatusNotFound)
		return
	}

	var call Call
	if err := decMode.NewDecoder(r.Body).Decode(&call); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	call.Method = parts[3]

	s.mu.Lock()
	s.calls = append(s.calls, call)
	h, ok := s.handlers[call.Method]
	s.mu.Unlock()
	if !ok {
		http.Error(w, "unknown method", http.StatusNotFound)
		return
	}

	result, err := h(call)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	blob, err := cbor.Marshal(result)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/cbor")
	_, _ = w.Write(blob)
}

func (s *Server) stage(c Call) (*canister.Result, error) {
	metadata, err := StagedMetadata(c)
	if err != nil {
		return canister.Failed(&canister.Error{Number: 2, Text: err.Error()}), nil
	}
	id, _ := metadata.Text("id")
	s.Put(id, metadata)
	return canister.OK(id)
}

func (s *Server) stageLibrary(c Call) (*canister.Result, error) {
	chunk, err := StagedChunk(c)
	if err != nil {
		return canister.Failed(&canister.Error{Number: 3, Text: err.Error()}), nil
	}
	s.mu.Lock()
	key := chunk.TokenID + "/" + chunk.LibraryID
	if chunk.Chunk == 0 {
		s.chunks[key] = nil
	}
	s.chunks[key] = append(s.chunks[key], chunk.Content...)
	s.mu.Unlock()
	return canister.OK(&canister.StageLibraryResponse{Canister: CanisterID})
}

func (s *Server) nft(c Call) (*canister.Result, error) {
	tokenID, _ := c.Arg.(string)
	metadata, ok := s.Metadata(tokenID)
	if !ok {
		return canister.Failed(&canister.Error{Number: 4, Text: "token not found", Kind: "token_not_found"}), nil
	}
	return canister.OK(&canister.NFTInfo{Metadata: metadata})
}

func (s *Server) collection(c Call) (*canister.Result, error) {
	s.mu.Lock()
	tokens := []string{}
	for id := range s.metadata {
		if id != "" {
			tokens = append(tokens, id)
		}
	}
	metadata := s.metadata[""]
	s.mu.Unlock()
	sort.Strings(tokens)
	count := uint64(len(tokens))
	return canister.OK(&canister.CollectionMeta{
		Metadata:      metadata,
		TokenIDs:      tokens,
		TokenIDsCount: &count,
	})
}
