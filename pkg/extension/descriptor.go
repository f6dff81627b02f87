// Package extension adapts the pose tracker to a block-based programming
// host: it supplies the static block descriptor and the command/reporter
// entry points the host calls.
package extension

import "github.com/teslashibe/go-movenet/pkg/pose"

// Extension identity.
const (
	ID     = "movenet2scratch"
	Name   = "MoveNet2Scratch"
	Color1 = "#4B8BF4"
)

// Menu identifiers.
const (
	PartMenu  = "PartMenu"
	ModelMenu = "ModelMenu"
)

// BlockType is how the host renders a block.
type BlockType string

const (
	BlockCommand  BlockType = "command"
	BlockReporter BlockType = "reporter"
	BlockBoolean  BlockType = "boolean"
)

// ArgumentType is the host-side type of a block argument.
type ArgumentType string

const (
	ArgString ArgumentType = "string"
	ArgNumber ArgumentType = "number"
)

// Argument describes one block input.
type Argument struct {
	Type         ArgumentType `json:"type"`
	Menu         string       `json:"menu,omitempty"`
	DefaultValue any          `json:"defaultValue,omitempty"`
}

// Block describes one block.
type Block struct {
	Opcode    string              `json:"opcode"`
	BlockType BlockType           `json:"blockType"`
	Text      string              `json:"text"`
	Arguments map[string]Argument `json:"arguments,omitempty"`
}

// Menu is a drop-down of fixed items.
type Menu struct {
	AcceptReporters bool     `json:"acceptReporters,omitempty"`
	Items           []string `json:"items"`
}

// Info is the full extension descriptor.
type Info struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Color1 string          `json:"color1"`
	Blocks []Block         `json:"blocks"`
	Menus  map[string]Menu `json:"menus"`
}

func partArg() map[string]Argument {
	return map[string]Argument{
		"part": {Type: ArgString, Menu: PartMenu, DefaultValue: pose.Nose.String()},
	}
}

// Describe returns the static descriptor. Each call returns a fresh copy.
func Describe() Info {
	models := make([]string, 0, len(pose.Variants()))
	for _, v := range pose.Variants() {
		models = append(models, v.String())
	}

	return Info{
		ID:     ID,
		Name:   Name,
		Color1: Color1,
		Blocks: []Block{
			{
				Opcode:    OpStart,
				BlockType: BlockCommand,
				Text:      "start MoveNet ([model])",
				Arguments: map[string]Argument{
					"model": {Type: ArgString, Menu: ModelMenu, DefaultValue: pose.Lightning.String()},
				},
			},
			{Opcode: OpStop, BlockType: BlockCommand, Text: "stop MoveNet"},
			{
				Opcode:    OpSetMinScore,
				BlockType: BlockCommand,
				Text:      "set minimum score to [score]",
				Arguments: map[string]Argument{
					"score": {Type: ArgNumber, DefaultValue: 0.3},
				},
			},
			{Opcode: OpGetX, BlockType: BlockReporter, Text: "x of [part]", Arguments: partArg()},
			{Opcode: OpGetY, BlockType: BlockReporter, Text: "y of [part]", Arguments: partArg()},
			{Opcode: OpGetScore, BlockType: BlockReporter, Text: "score of [part]", Arguments: partArg()},
			{Opcode: OpHasPose, BlockType: BlockBoolean, Text: "pose detected?"},
		},
		Menus: map[string]Menu{
			PartMenu:  {AcceptReporters: true, Items: append([]string(nil), pose.Names[:]...)},
			ModelMenu: {Items: models},
		},
	}
}
