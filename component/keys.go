package component

// Bus parameter keys
const (
	BusNumber       = "BUS_NUMBER"
	BusType         = "BUS_TYPE"
	BusArea         = "BUS_AREA"
	BusZone         = "BUS_ZONE"
	BusVoltageMag   = "BUS_VOLTAGE_MAG"
	BusVoltageAng   = "BUS_VOLTAGE_ANG" // degrees
	BusShuntGs      = "BUS_SHUNT_GS"
	BusShuntBs      = "BUS_SHUNT_BS"
	LoadPL          = "LOAD_PL"
	LoadQL          = "LOAD_QL"
	GeneratorNumber = "GENERATOR_NUMBER"
	GeneratorID     = "GENERATOR_ID"
	GeneratorPG     = "GENERATOR_PG"
	GeneratorQG     = "GENERATOR_QG"
	GeneratorStatus = "GENERATOR_STAT"
)

// Branch parameter keys; all but the endpoints and BranchNumElements are
// indexed per circuit
const (
	BranchFromBus     = "BRANCH_FROMBUS"
	BranchToBus       = "BRANCH_TOBUS"
	BranchNumElements = "BRANCH_NUM_ELEMENTS"
	BranchCircuit     = "BRANCH_CKT"
	BranchR           = "BRANCH_R"
	BranchX           = "BRANCH_X"
	BranchB           = "BRANCH_B"
	BranchShuntG1     = "BRANCH_SHUNT_ADMTTNC_G1"
	BranchShuntB1     = "BRANCH_SHUNT_ADMTTNC_B1"
	BranchShuntG2     = "BRANCH_SHUNT_ADMTTNC_G2"
	BranchShuntB2     = "BRANCH_SHUNT_ADMTTNC_B2"
	BranchTap         = "BRANCH_TAP"
	BranchShift       = "BRANCH_SHIFT" // degrees
	BranchStatus      = "BRANCH_STATUS"
	BranchRating      = "BRANCH_RATING"
)

// Bus types as carried by BUS_TYPE
const (
	TypePQ        = 1
	TypePV        = 2
	TypeReference = 3
	TypeIsolated  = 4
)
