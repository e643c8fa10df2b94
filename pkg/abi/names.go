package abi

// ImportModule is the module name the host registers its filesystem
// primitives under.
const ImportModule = "env"

// Host primitives imported by the guest.
const (
	ImportRead      = "host_fs_read"
	ImportWrite     = "host_fs_write"
	ImportStat      = "host_fs_stat"
	ImportReadDir   = "host_fs_readdir"
	ImportCreate    = "host_fs_create"
	ImportMkdir     = "host_fs_mkdir"
	ImportRemove    = "host_fs_remove"
	ImportRemoveAll = "host_fs_remove_all"
	ImportRename    = "host_fs_rename"
	ImportChmod     = "host_fs_chmod"
)

// Entry points exported by the guest.
const (
	ExportMalloc     = "malloc"
	ExportFree       = "free"
	ExportNew        = "plugin_new"
	ExportName       = "plugin_name"
	ExportReadme     = "plugin_get_readme"
	ExportValidate   = "plugin_validate"
	ExportInitialize = "plugin_initialize"
	ExportShutdown   = "plugin_shutdown"
	ExportStat       = "fs_stat"
	ExportReadDir    = "fs_readdir"
	ExportRead       = "fs_read"
	ExportWrite      = "fs_write"
	ExportCreate     = "fs_create"
	ExportMkdir      = "fs_mkdir"
	ExportRemove     = "fs_remove"
	ExportRemoveAll  = "fs_remove_all"
	ExportRename     = "fs_rename"
	ExportChmod      = "fs_chmod"
)
