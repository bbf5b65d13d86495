package mailsync

import (
	"regexp"
	"strings"

	"github.com/kzcare/crm/pkg/models"
)

// translations maps the Russian questionnaire labels to mother fields.
// Unknown labels pass through untranslated so nothing silently drops.
var translations = map[string]string{
	"ФИО":                                    "name",
	"Телефон":                                "number",
	"Город проживания":                       "residence",
	"Программа":                              "program",
	"Ваш рост и вес":                         "height_and_weight",
	"Есть ли склонность ко вредным привычкам?": "bad_habits",
	"Делали Вам кесарево? Сколько раз?":      "caesarean",
	"Возраст родных детей":                   "children_age",
	"Ваш возраст":                            "age",
	"Гражданство":                            "citizenship",
	"Группа крови":                           "blood",
	"Семейное положение":                     "maried",
}

// the sender's own address; never stored
const mailLabel = "Почта"

var lineRe = regexp.MustCompile(`(.+?) - (.+?)\n`)

// ParseQuestionnaire extracts the "key - value" lines of a message body
// into translated field names. Values keep their content verbatim; the
// questionnaire is free-form text and is not validated here.
func ParseQuestionnaire(body string) map[string]string {
	fields := make(map[string]string)
	for _, match := range lineRe.FindAllStringSubmatch(body, -1) {
		key := strings.TrimSpace(match[1])
		if key == mailLabel {
			continue
		}
		if translated, ok := translations[key]; ok {
			key = translated
		}
		fields[key] = strings.TrimRight(match[2], "\r")
	}
	return fields
}

// MotherFromFields builds a mother record from parsed questionnaire
// fields. Unknown fields are ignored.
func MotherFromFields(fields map[string]string) *models.Mother {
	return &models.Mother{
		Name:            fields["name"],
		Number:          fields["number"],
		Program:         fields["program"],
		Residence:       fields["residence"],
		HeightAndWeight: fields["height_and_weight"],
		BadHabits:       fields["bad_habits"],
		Caesarean:       fields["caesarean"],
		ChildrenAge:     fields["children_age"],
		Age:             fields["age"],
		Citizenship:     fields["citizenship"],
		Blood:           fields["blood"],
		Maried:          fields["maried"],
	}
}
