package tools

import (
	"context"

	"github.com/niqitosiq/gemini-obsidian-helper/internal/vault"
)

// CreateFileTool writes a new markdown file into the vault.
type CreateFileTool struct {
	vault *vault.Storage
}

// NewCreateFileTool creates a CreateFileTool bound to a vault.
func NewCreateFileTool(v *vault.Storage) *CreateFileTool {
	return &CreateFileTool{vault: v}
}

func (t *CreateFileTool) Name() string {
	return "create_file"
}

func (t *CreateFileTool) Description() string {
	return "Creates a file in the vault with the given content. Parent folders are created automatically; an existing file at the same path is overwritten."
}

func (t *CreateFileTool) Definition() Definition {
	return Definition{
		Name:        t.Name(),
		Description: t.Description(),
		Required:    []string{"path", "content"},
		Params: map[string]string{
			"path":    "Vault-relative path of the file to create, e.g. '03 - Tasks/Buy groceries.md'.",
			"content": "Full markdown content of the file, including frontmatter when applicable.",
		},
	}
}

func (t *CreateFileTool) Execute(ctx context.Context, params map[string]any) Result {
	path, errRes := requireString(params, "path", "path", "file_path")
	if errRes != nil {
		return *errRes
	}
	content, errRes := contentParam(params)
	if errRes != nil {
		return *errRes
	}

	full, err := t.vault.CreateFile(path, content)
	if err != nil {
		return Errorf("failed to create file: %v", err)
	}

	res := Success("File created: " + path)
	res.Data = map[string]any{"absolute_path": full}
	return res
}

// ModifyFileTool overwrites an existing vault file.
type ModifyFileTool struct {
	vault *vault.Storage
}

// NewModifyFileTool creates a ModifyFileTool bound to a vault.
func NewModifyFileTool(v *vault.Storage) *ModifyFileTool {
	return &ModifyFileTool{vault: v}
}

func (t *ModifyFileTool) Name() string {
	return "modify_file"
}

func (t *ModifyFileTool) Description() string {
	return "Replaces the full content of an existing vault file. Fails when the file does not exist. There is no partial patching; always provide the complete new content."
}

func (t *ModifyFileTool) Definition() Definition {
	return Definition{
		Name:        t.Name(),
		Description: t.Description(),
		Required:    []string{"path", "content"},
		Params: map[string]string{
			"path":    "Vault-relative path of the file to modify.",
			"content": "Complete new markdown content of the file.",
		},
	}
}

func (t *ModifyFileTool) Execute(ctx context.Context, params map[string]any) Result {
	path, errRes := requireString(params, "path", "path", "file_path")
	if errRes != nil {
		return *errRes
	}
	content, errRes := contentParam(params)
	if errRes != nil {
		return *errRes
	}

	if err := t.vault.ModifyFile(path, content); err != nil {
		return Errorf("failed to modify file: %v", err)
	}
	return Success("File modified: " + path)
}

// DeleteFileTool removes an existing vault file.
type DeleteFileTool struct {
	vault *vault.Storage
}

// NewDeleteFileTool creates a DeleteFileTool bound to a vault.
func NewDeleteFileTool(v *vault.Storage) *DeleteFileTool {
	return &DeleteFileTool{vault: v}
}

func (t *DeleteFileTool) Name() string {
	return "delete_file"
}

func (t *DeleteFileTool) Description() string {
	return "Deletes a file from the vault. Fails when the file does not exist."
}

func (t *DeleteFileTool) Definition() Definition {
	return Definition{
		Name:        t.Name(),
		Description: t.Description(),
		Required:    []string{"path"},
		Params: map[string]string{
			"path": "Vault-relative path of the file to delete.",
		},
	}
}

func (t *DeleteFileTool) Execute(ctx context.Context, params map[string]any) Result {
	path, errRes := requireString(params, "path", "path", "file_path")
	if errRes != nil {
		return *errRes
	}

	if err := t.vault.DeleteFile(path); err != nil {
		return Errorf("failed to delete file: %v", err)
	}
	return Success("File deleted: " + path)
}

// CreateFolderTool creates a vault directory.
type CreateFolderTool struct {
	vault *vault.Storage
}

// NewCreateFolderTool creates a CreateFolderTool bound to a vault.
func NewCreateFolderTool(v *vault.Storage) *CreateFolderTool {
	return &CreateFolderTool{vault: v}
}

func (t *CreateFolderTool) Name() string {
	return "create_folder"
}

func (t *CreateFolderTool) Description() string {
	return "Creates a folder in the vault, including missing parent folders."
}

func (t *CreateFolderTool) Definition() Definition {
	return Definition{
		Name:        t.Name(),
		Description: t.Description(),
		Required:    []string{"path"},
		Params: map[string]string{
			"path": "Vault-relative path of the folder to create.",
		},
	}
}

func (t *CreateFolderTool) Execute(ctx context.Context, params map[string]any) Result {
	path, errRes := requireString(params, "path", "path", "folder_path")
	if errRes != nil {
		return *errRes
	}

	if err := t.vault.CreateFolder(path); err != nil {
		return Errorf("failed to create folder: %v", err)
	}
	return Success("Folder created: " + path)
}

// DeleteFolderTool removes a vault directory and its contents.
type DeleteFolderTool struct {
	vault *vault.Storage
}

// NewDeleteFolderTool creates a DeleteFolderTool bound to a vault.
func NewDeleteFolderTool(v *vault.Storage) *DeleteFolderTool {
	return &DeleteFolderTool{vault: v}
}

func (t *DeleteFolderTool) Name() string {
	return "delete_folder"
}

func (t *DeleteFolderTool) Description() string {
	return "Deletes a folder and everything in it from the vault. Fails when the folder does not exist."
}

func (t *DeleteFolderTool) Definition() Definition {
	return Definition{
		Name:        t.Name(),
		Description: t.Description(),
		Required:    []string{"path"},
		Params: map[string]string{
			"path": "Vault-relative path of the folder to delete.",
		},
	}
}

func (t *DeleteFolderTool) Execute(ctx context.Context, params map[string]any) Result {
	path, errRes := requireString(params, "path", "path", "folder_path")
	if errRes != nil {
		return *errRes
	}

	if err := t.vault.DeleteFolder(path); err != nil {
		return Errorf("failed to delete folder: %v", err)
	}
	return Success("Folder deleted: " + path)
}
