package ui

// Fake is a scripted Dialogs for tests and non-interactive runs.
type Fake struct {
	Clipboard    string
	Input        string
	InputErr     error
	Yes          bool
	Folder       string
	FolderErr    error
	PashuaResult map[string]string

	// Recorded interactions.
	Prompts      []string
	PashuaConfig string
	Opened       []string
}

func (f *Fake) ReadClipboard() (string, error) { return f.Clipboard, nil }

func (f *Fake) InputBox(title, prompt, field string) (string, error) {
	f.Prompts = append(f.Prompts, prompt)
	if f.InputErr != nil {
		return "", f.InputErr
	}
	return f.Input, nil
}

func (f *Fake) YesNo(title, text string) (bool, error) {
	f.Prompts = append(f.Prompts, text)
	return f.Yes, nil
}

func (f *Fake) SelectFolder(prompt string) (string, error) {
	f.Prompts = append(f.Prompts, prompt)
	return f.Folder, f.FolderErr
}

func (f *Fake) Pashua(config string) (map[string]string, error) {
	f.PashuaConfig = config
	return f.PashuaResult, nil
}

func (f *Fake) OpenURL(url string) error {
	f.Opened = append(f.Opened, url)
	return nil
}
