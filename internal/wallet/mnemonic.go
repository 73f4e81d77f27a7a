package wallet

import (
	"crypto/ecdsa"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"

	"github.com/mrz1836/pharos-avatars/internal/chain"
	avatarerr "github.com/mrz1836/pharos-avatars/pkg/errors"
)

// MaxTypoDistance is the maximum Levenshtein distance to consider a suggestion.
const MaxTypoDistance = 2

//nolint:gochecknoglobals // compiled once
var (
	whitespaceRegex   = regexp.MustCompile(`\s+`)
	numberedListRegex = regexp.MustCompile(`(?m)^\s*\d+[\.\)\:]\s*`)
	bulletListRegex   = regexp.MustCompile(`(?m)^\s*[-*•]\s*`)

	wordSetOnce sync.Once
	wordSet     map[string]struct{}
)

// GenerateMnemonic creates a new BIP39 mnemonic phrase of 12 or 24 words.
func GenerateMnemonic(wordCount int) (string, error) {
	var bitSize int
	switch wordCount {
	case 12:
		bitSize = 128
	case 24:
		bitSize = 256
	default:
		return "", avatarerr.WithDetails(avatarerr.ErrInvalidInput, map[string]string{
			"words": strconv.Itoa(wordCount),
			"hint":  "word count must be 12 or 24",
		})
	}

	entropy, err := bip39.NewEntropy(bitSize)
	if err != nil {
		return "", err
	}
	return bip39.NewMnemonic(entropy)
}

// ValidateMnemonic checks word count, word validity and checksum.
// Unknown words come back with Levenshtein suggestions in the error details.
func ValidateMnemonic(mnemonic string) error {
	normalized := NormalizeMnemonicInput(mnemonic)
	words := strings.Fields(normalized)
	if len(words) != 12 && len(words) != 24 {
		return avatarerr.WithDetails(avatarerr.ErrInvalidMnemonic, map[string]string{
			"words": strconv.Itoa(len(words)),
		})
	}

	if typos := DetectTypos(normalized); len(typos) > 0 {
		return avatarerr.WithSuggestion(avatarerr.ErrInvalidMnemonic, FormatTypoSuggestions(typos))
	}

	if !bip39.IsMnemonicValid(normalized) {
		return avatarerr.WithDetails(avatarerr.ErrInvalidMnemonic, map[string]string{
			"reason": "checksum mismatch",
		})
	}
	return nil
}

// NormalizeMnemonicInput lowercases the phrase, strips list numbering and
// bullets, turns commas into spaces and collapses whitespace.
func NormalizeMnemonicInput(input string) string {
	input = strings.ToLower(input)
	input = numberedListRegex.ReplaceAllString(input, " ")
	input = bulletListRegex.ReplaceAllString(input, " ")
	input = strings.ReplaceAll(input, ",", " ")
	input = whitespaceRegex.ReplaceAllString(input, " ")
	return strings.TrimSpace(input)
}

// DeriveKey derives the private key at m/44'/60'/0'/0/index.
func DeriveKey(mnemonic, bip39Passphrase string, index uint32) (*ecdsa.PrivateKey, error) {
	if err := ValidateMnemonic(mnemonic); err != nil {
		return nil, err
	}

	seed := bip39.NewSeed(NormalizeMnemonicInput(mnemonic), bip39Passphrase)
	defer clear(seed)

	key, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("deriving master key: %w", err)
	}

	path := []uint32{
		bip32.FirstHardenedChild + 44,
		bip32.FirstHardenedChild + chain.CoinTypeETH,
		bip32.FirstHardenedChild,
		0,
		index,
	}
	for _, child := range path {
		key, err = key.NewChildKey(child)
		if err != nil {
			return nil, fmt.Errorf("deriving child key: %w", err)
		}
	}

	return crypto.ToECDSA(key.Key)
}

// IsValidWord checks if a word is in the BIP39 English word list.
func IsValidWord(word string) bool {
	wordSetOnce.Do(func() {
		list := bip39.GetWordList()
		wordSet = make(map[string]struct{}, len(list))
		for _, w := range list {
			wordSet[w] = struct{}{}
		}
	})
	_, ok := wordSet[strings.ToLower(word)]
	return ok
}

// TypoInfo describes a word that is not in the word list.
type TypoInfo struct {
	Index      int
	Word       string
	Suggestion string
	Distance   int
}

// SuggestWord returns the closest BIP39 word within MaxTypoDistance, or "".
func SuggestWord(input string) string {
	input = strings.ToLower(input)

	minDist := math.MaxInt
	var suggestion string
	for _, word := range bip39.GetWordList() {
		dist := levenshtein.ComputeDistance(input, word)
		if dist == 0 {
			return word
		}
		if dist < minDist {
			minDist = dist
			suggestion = word
		}
	}

	if minDist <= MaxTypoDistance {
		return suggestion
	}
	return ""
}

// DetectTypos returns every word of the phrase missing from the word list.
func DetectTypos(mnemonic string) []TypoInfo {
	var typos []TypoInfo
	for i, word := range strings.Fields(NormalizeMnemonicInput(mnemonic)) {
		if IsValidWord(word) {
			continue
		}
		info := TypoInfo{Index: i, Word: word, Suggestion: SuggestWord(word)}
		if info.Suggestion != "" {
			info.Distance = levenshtein.ComputeDistance(word, info.Suggestion)
		}
		typos = append(typos, info)
	}
	return typos
}

// FormatTypoSuggestions renders typos one per line, with 1-based positions.
func FormatTypoSuggestions(typos []TypoInfo) string {
	lines := make([]string, 0, len(typos))
	for _, typo := range typos {
		if typo.Suggestion != "" {
			lines = append(lines, fmt.Sprintf("word %d: '%s' - did you mean '%s'?", typo.Index+1, typo.Word, typo.Suggestion))
			continue
		}
		lines = append(lines, fmt.Sprintf("word %d: '%s' is not a valid BIP39 word", typo.Index+1, typo.Word))
	}
	return strings.Join(lines, "\n")
}
