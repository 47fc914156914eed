package types

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Address representa um endereço de cobrança ou entrega
type Address struct {
	Street1 string `json:"street1"`
	Street2 string `json:"street2,omitempty"`
	Number  string `json:"number,omitempty"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zipcode string `json:"zipcode"`
	Country string `json:"country,omitempty"`
}

// ThreeDSProof carries the authentication result fields relayed to the backend.
type ThreeDSProof struct {
	Eci       string `json:"eci"`
	RequestID string `json:"request_id"`
	Xid       string `json:"xid"`
	Cavv      string `json:"cavv"`
	Version   string `json:"version"`
}

// FlexBool accepts both JSON booleans and the strings "true"/"false".
type FlexBool bool

func (b *FlexBool) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if raw == "" || raw == "null" {
		*b = false
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return err
	}
	*b = FlexBool(v)
	return nil
}

func (b FlexBool) MarshalJSON() ([]byte, error) {
	return json.Marshal(bool(b))
}

func (b FlexBool) String() string {
	return strconv.FormatBool(bool(b))
}
