package prompt

import (
	"github.com/manifoldco/promptui"
)

// Secret prompts for a sensitive value with masked input. Used for API
// keys so they never echo to the terminal.
func Secret(label string) (string, error) {
	prompt := promptui.Prompt{
		Label: label,
		Mask:  '*',
	}

	result, err := prompt.Run()
	return result, wrapError(err)
}
