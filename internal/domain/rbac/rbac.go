// Пакет rbac — определение эффективной роли субъекта.
// Роли отражают стороны рабочего процесса delivery:
// client (заказчик) < operator (исполнитель) < admin.
// Роль вычисляется из групп IdP; роль можно только повысить, не понизить.
package rbac

// Роли в порядке возрастания привилегий.
const (
	RoleClient   = "client"
	RoleOperator = "operator"
	RoleAdmin    = "admin"
)

// roleWeight — вес роли для сравнения.
// Чем выше вес, тем больше привилегий.
var roleWeight = map[string]int{
	RoleClient:   1,
	RoleOperator: 2,
	RoleAdmin:    3,
}

// maxRole возвращает роль с максимальными привилегиями из двух.
func maxRole(a, b string) string {
	wa := roleWeight[a]
	wb := roleWeight[b]
	if wa >= wb {
		return a
	}
	return b
}

// HighestRole возвращает максимальную роль из набора.
// Если набор пуст — возвращает пустую строку.
func HighestRole(roles []string) string {
	if len(roles) == 0 {
		return ""
	}
	highest := roles[0]
	for _, r := range roles[1:] {
		highest = maxRole(highest, r)
	}
	return highest
}

// MapGroupsToRole определяет роль субъекта на основе его групп IdP.
// Проверяет принадлежность к adminGroups, operatorGroups и clientGroups.
// Возвращает максимальную роль из всех совпадений.
// Если ни одна группа не совпала — возвращает пустую строку.
func MapGroupsToRole(groups []string, adminGroups, operatorGroups, clientGroups []string) string {
	adminSet := toSet(adminGroups)
	operatorSet := toSet(operatorGroups)
	clientSet := toSet(clientGroups)

	var roles []string
	for _, g := range groups {
		if adminSet[g] {
			roles = append(roles, RoleAdmin)
		}
		if operatorSet[g] {
			roles = append(roles, RoleOperator)
		}
		if clientSet[g] {
			roles = append(roles, RoleClient)
		}
	}

	return HighestRole(roles)
}

// AtLeast проверяет, что роль role имеет привилегии не ниже required.
func AtLeast(role, required string) bool {
	return roleWeight[role] >= roleWeight[required] && roleWeight[role] > 0
}

// IsValidRole проверяет, является ли строка допустимой ролью.
func IsValidRole(role string) bool {
	_, ok := roleWeight[role]
	return ok
}

// toSet конвертирует срез строк в map для быстрого поиска.
func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}
