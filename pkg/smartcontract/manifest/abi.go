package manifest

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
)

const (
	// MethodConstructor is a name for the constructor pseudo-method, it's
	// never callable after deployment.
	MethodConstructor = "constructor"

	// MethodOnERC721Received is the name of the method which is called when
	// contract receives ERC-721 tokens via safe transfers.
	MethodOnERC721Received = "onERC721Received"
)

// ABI represents a contract application binary interface.
type ABI struct {
	Methods []Method `json:"methods"`
	Events  []Event  `json:"events"`
}

// GetMethod returns methods with the specified name. Negative paramCount
// matches any number of parameters.
func (a *ABI) GetMethod(name string, paramCount int) *Method {
	for i := range a.Methods {
		if a.Methods[i].Name == name && (paramCount < 0 || len(a.Methods[i].Parameters) == paramCount) {
			return &a.Methods[i]
		}
	}
	return nil
}

// GetMethodBySelector returns the method with the specified 4-byte selector.
func (a *ABI) GetMethodBySelector(sel [4]byte) *Method {
	for i := range a.Methods {
		if a.Methods[i].Selector() == sel {
			return &a.Methods[i]
		}
	}
	return nil
}

// GetEvent returns the event with the specified name.
func (a *ABI) GetEvent(name string) *Event {
	for i := range a.Events {
		if a.Events[i].Name == name {
			return &a.Events[i]
		}
	}
	return nil
}

// IsValid checks ABI consistency and correctness.
func (a *ABI) IsValid() error {
	if len(a.Methods) == 0 {
		return errors.New("no methods")
	}
	for i := range a.Methods {
		err := a.Methods[i].IsValid()
		if err != nil {
			return fmt.Errorf("method %q/%d: %w", a.Methods[i].Name, len(a.Methods[i].Parameters), err)
		}
	}
	if len(a.Methods) > 1 {
		var methods = slices.Clone(a.Methods)
		slices.SortFunc(methods, func(a, b Method) int {
			return cmp.Or(
				cmp.Compare(a.Name, b.Name),
				cmp.Compare(len(a.Parameters), len(b.Parameters)),
			)
		})
		for i := range methods {
			if i == 0 {
				continue
			}
			if methods[i].Name == methods[i-1].Name &&
				len(methods[i].Parameters) == len(methods[i-1].Parameters) {
				return errors.New("duplicate method specifications")
			}
		}
	}
	for i := range a.Events {
		err := a.Events[i].IsValid()
		if err != nil {
			return fmt.Errorf("event %q/%d: %w", a.Events[i].Name, len(a.Events[i].Parameters), err)
		}
	}
	if len(a.Events) > 1 {
		names := make([]string, len(a.Events))
		for i := range a.Events {
			names[i] = a.Events[i].Name
		}
		if stringsHaveDups(names) {
			return errors.New("duplicate event names")
		}
	}
	return nil
}
