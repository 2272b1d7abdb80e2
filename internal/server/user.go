package server

// AuthMethod names how a target authenticates.
type AuthMethod string

const (
	AuthPassword AuthMethod = "password"
	AuthKey      AuthMethod = "key"
	AuthAgent    AuthMethod = "agent"
)

// User holds SSH credentials and optional sudo password for command execution.
// Exactly one of Password, SSHKey or the agent is used, as selected by Method.
type User struct {
	Name         string
	Method       AuthMethod
	Password     string
	SSHKey       string
	SudoPassword string
}
