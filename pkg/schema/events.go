package schema

// Event type constants for the design log and change streams.
const (
	EventDocumentLoaded      = "document_loaded"
	EventDocumentInitialized = "document_initialized"

	EventNodeAdded       = "node_added"
	EventNodeRemoved     = "node_removed"
	EventNodeMoved       = "node_moved"
	EventNodeResized     = "node_resized"
	EventNodeReparented  = "node_reparented"
	EventNodeCollapsed   = "node_collapsed"
	EventNodeExpanded    = "node_expanded"
	EventNodeDataChanged = "node_data_changed"

	EventEdgeAdded       = "edge_added"
	EventEdgeRemoved     = "edge_removed"
	EventEdgeDataChanged = "edge_data_changed"

	EventSelectionChanged   = "selection_changed"
	EventValidationRejected = "validation_rejected"

	EventFlowCreated = "flow_created"
	EventFlowSaved   = "flow_saved"
	EventFlowDeleted = "flow_deleted"

	EventNodeTypeRegistered = "node_type_registered"
)
