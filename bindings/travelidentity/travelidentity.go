// Package travelidentity carries the interface description of the
// TravelIdentity contract and checks externally supplied ABIs against the
// calls the client makes.
package travelidentity

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

//go:embed TravelIdentity.abi.json
var defaultABIJSON string

// DefaultAddress is the deployment the client talks to unless configured otherwise.
const DefaultAddress = "0x142Ee563A1048e7D4767D8885B01E6f58f49dc4B"

// Contract methods used by the client.
const (
	MethodRegisterUser = "registerUser"
	MethodGetUser      = "getUser"
)

// DefaultABI returns the embedded TravelIdentity ABI.
func DefaultABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(defaultABIJSON))
}

// LoadABI parses an ABI from r and validates it. Both a bare ABI array and
// a compiler artifact with an "abi" field are accepted.
func LoadABI(r io.Reader) (abi.ABI, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("could not read ABI: %w", err)
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '{' {
		var artifact struct {
			ABI json.RawMessage `json:"abi"`
		}
		if err := json.Unmarshal(raw, &artifact); err != nil {
			return abi.ABI{}, fmt.Errorf("could not decode ABI artifact: %w", err)
		}
		if len(artifact.ABI) == 0 {
			return abi.ABI{}, fmt.Errorf("artifact has no abi field")
		}
		raw = artifact.ABI
	}

	parsed, err := abi.JSON(bytes.NewReader(raw))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("could not parse ABI: %w", err)
	}

	if err := Validate(parsed); err != nil {
		return abi.ABI{}, err
	}
	return parsed, nil
}

// LoadABIFile reads and validates the ABI stored at path.
func LoadABIFile(path string) (abi.ABI, error) {
	f, err := os.Open(path)
	if err != nil {
		return abi.ABI{}, err
	}
	defer f.Close()

	return LoadABI(f)
}

// Validate checks that parsed declares registerUser(string,string,string)
// and getUser(address) returning (string,string,bool).
func Validate(parsed abi.ABI) error {
	register, ok := parsed.Methods[MethodRegisterUser]
	if !ok {
		return fmt.Errorf("ABI does not declare %s", MethodRegisterUser)
	}
	if err := checkArgs(MethodRegisterUser+" inputs", register.Inputs, abi.StringTy, abi.StringTy, abi.StringTy); err != nil {
		return err
	}

	getUser, ok := parsed.Methods[MethodGetUser]
	if !ok {
		return fmt.Errorf("ABI does not declare %s", MethodGetUser)
	}
	if err := checkArgs(MethodGetUser+" inputs", getUser.Inputs, abi.AddressTy); err != nil {
		return err
	}
	if err := checkArgs(MethodGetUser+" outputs", getUser.Outputs, abi.StringTy, abi.StringTy, abi.BoolTy); err != nil {
		return err
	}
	return nil
}

func checkArgs(what string, args abi.Arguments, want ...byte) error {
	if len(args) != len(want) {
		return fmt.Errorf("%s: expected %d arguments, got %d", what, len(want), len(args))
	}
	for i, arg := range args {
		if arg.Type.T != want[i] {
			return fmt.Errorf("%s: argument %d has type %s", what, i, arg.Type.String())
		}
	}
	return nil
}
