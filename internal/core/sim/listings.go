package sim

import "github.com/zeusync/packwork/internal/core/patch"

// Host members referenced by the bodies below.
var (
	PlaceBlueprint    = patch.Member("GenConstruct", "PlaceBlueprintForBuild")
	RoundRandom       = patch.Member("GenMath", "RoundRandom")
	CategoryField     = patch.Member("ThingDef", "designationCategory")
	CategoryEquals    = patch.Member("DesignationCategoryDef", "op_Equality")
	CategoryGateValue = int32(3)
)

// Bodies of the host methods behind each point. The host reads a few facts
// back out of the instrumented bodies, so rewrites change what it does.
const (
	jobOfferListing = `
ldarg 1
ldfld Thing::stackCount
call GenMath::RoundRandom
ldc.i4.1
stloc 0
ldarg 0
ldarg 1
ldloc 0
callvirt ReservationManager::Reserve
ret
`

	designationListing = `
ldarg 0
ldfld ThingDef::designationCategory
ldnull
ldc.i4.3
brfalse L_reject
call DesignationCategoryDef::op_Equality
ldarg 0
ldarg 1
call GenConstruct::PlaceBlueprintForBuild
ret
L_reject:
ldnull
ret
`

	installListing = `
ldarg 0
callvirt Blueprint_Install::TryReplaceWithSolidThing
ret
`

	graphicListing = `
ldarg 0
ldfld Thing::def
ldfld ThingDef::graphic
ret
`

	validationListing = `
ldarg 0
call DefDatabase::ErrorCheckAllDefs
ret
`

	impliedListing = `
call DefGenerator::GenerateImpliedDefs_PreResolve
ret
`
)

// reservationCount is the constant loaded right after the conversion call,
// or 1 when the pattern is missing.
func reservationCount(body []patch.Instruction) int32 {
	for i := 0; i+1 < len(body); i++ {
		if body[i].Calls(RoundRandom) {
			if n, ok := body[i+1].ConstValue(); ok {
				return n
			}
		}
	}
	return 1
}

// categoryGated reports whether the designation body still rejects types
// without a designation category.
func categoryGated(body []patch.Instruction) bool {
	for i := 2; i+1 < len(body); i++ {
		if body[i].IsLoadConst(CategoryGateValue) && body[i-2].LoadsField(CategoryField) {
			return body[i+1].Op.IsConditionalBranch()
		}
	}
	return false
}

// placementCall returns the first call in body that has a bound placer.
func placementCall(body []patch.Instruction, bound func(patch.MemberRef) bool) (patch.MemberRef, bool) {
	for _, in := range body {
		if m, ok := in.Member(); ok && in.Op.IsCall() && bound(m) {
			return m, true
		}
	}
	return patch.MemberRef{}, false
}
