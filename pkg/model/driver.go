package model

// Driver is the identity captured at the driver step.
type Driver struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}
