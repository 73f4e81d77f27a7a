package wallet

import (
	"sort"
	"strconv"
	"sync"

	"github.com/mrz1836/pharos-avatars/internal/fileutil"
)

// MainnetChainID is the chain a fresh wallet starts on.
const MainnetChainID int64 = 1

// MainnetParams describes Ethereum mainnet, the only network a fresh wallet knows.
func MainnetParams() ChainParams {
	return ChainParams{
		ChainID:     MainnetChainID,
		ChainName:   "Ethereum Mainnet",
		RPCURLs:     []string{"https://ethereum-rpc.publicnode.com"},
		Currency:    Currency{Name: "Ether", Symbol: "ETH", Decimals: 18},
		ExplorerURL: "https://etherscan.io",
	}
}

type networkFile struct {
	Active   int64         `yaml:"active"`
	Networks []ChainParams `yaml:"networks"`
}

// NetworkRegistry persists known networks and the active chain.
type NetworkRegistry struct {
	mu     sync.RWMutex
	path   string
	active int64
	known  map[int64]ChainParams
}

// LoadNetworks reads the registry at path, seeding mainnet when absent.
func LoadNetworks(path string) (*NetworkRegistry, error) {
	r := &NetworkRegistry{
		path:   path,
		active: MainnetChainID,
		known:  map[int64]ChainParams{MainnetChainID: MainnetParams()},
	}

	var file networkFile
	found, err := fileutil.ReadYAML(path, &file)
	if err != nil {
		return nil, err
	}
	if !found {
		return r, nil
	}

	for _, n := range file.Networks {
		r.known[n.ChainID] = n
	}
	if _, ok := r.known[file.Active]; ok {
		r.active = file.Active
	}
	return r, nil
}

// Active returns the active chain id.
func (r *NetworkRegistry) Active() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Get returns the parameters of a known chain.
func (r *NetworkRegistry) Get(chainID int64) (ChainParams, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.known[chainID]
	return p, ok
}

// Known returns all known networks ordered by chain id.
func (r *NetworkRegistry) Known() []ChainParams {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ChainParams, 0, len(r.known))
	for _, p := range r.known {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChainID < out[j].ChainID })
	return out
}

// SetActive switches the active chain. The chain must be known.
func (r *NetworkRegistry) SetActive(chainID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.known[chainID]; !ok {
		return NewProviderError(CodeUnrecognizedChain, MethodSwitchChain,
			"unrecognized chain id "+strconv.FormatInt(chainID, 10))
	}
	if r.active == chainID {
		return nil
	}
	prev := r.active
	r.active = chainID
	if err := r.saveLocked(); err != nil {
		r.active = prev
		return err
	}
	return nil
}

// Add validates and stores a network. Re-adding a chain replaces its parameters.
func (r *NetworkRegistry) Add(params ChainParams) error {
	if err := params.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	prev, existed := r.known[params.ChainID]
	params.RPCURLs = append([]string(nil), params.RPCURLs...)
	r.known[params.ChainID] = params
	if err := r.saveLocked(); err != nil {
		if existed {
			r.known[params.ChainID] = prev
		} else {
			delete(r.known, params.ChainID)
		}
		return err
	}
	return nil
}

func (r *NetworkRegistry) saveLocked() error {
	file := networkFile{Active: r.active}
	for _, p := range r.known {
		file.Networks = append(file.Networks, p)
	}
	sort.Slice(file.Networks, func(i, j int) bool { return file.Networks[i].ChainID < file.Networks[j].ChainID })
	return fileutil.WriteYAML(r.path, file)
}
