// Package refdata holds the read-only reference data for the broadcast
// overlay: the team roster and the ordered commentary script. Clients fetch
// it once per session; the room core never mutates it.
package refdata

import "context"

// Team is one roster entry. The flat p*_ fields mirror the overlay's wire
// format, so the JSON shape stays compatible with the frontend.
type Team struct {
	ID         string `json:"id"`
	University string `json:"university"`
	TeamName   string `json:"teamName"`
	Comment    string `json:"comment"`
	TeamInfo   string `json:"teamInfo"`
	PlayerInfo string `json:"playerInfo"`
	CircleName string `json:"circleName"`
	CircleInfo string `json:"circleInfo"`
	P1Name     string `json:"p1_name"`
	P1XP       string `json:"p1_xp"`
	P1Weapons  string `json:"p1_weapons"`
	P2Name     string `json:"p2_name"`
	P2XP       string `json:"p2_xp"`
	P2Weapons  string `json:"p2_weapons"`
	P3Name     string `json:"p3_name"`
	P3XP       string `json:"p3_xp"`
	P3Weapons  string `json:"p3_weapons"`
	P4Name     string `json:"p4_name"`
	P4XP       string `json:"p4_xp"`
	P4Weapons  string `json:"p4_weapons"`
}

// ScriptLine is one entry of the scripted commentary sequence.
type ScriptLine struct {
	Speaker string `json:"speaker"`
	Line    string `json:"line"`
}

// Bundle is the full reference-data payload served at /api/initial-data.
type Bundle struct {
	TeamsData  []Team       `json:"teamsData"`
	ScriptData []ScriptLine `json:"scriptData"`
}

// Provider serves the reference-data bundle.
type Provider interface {
	Bundle(ctx context.Context) (Bundle, error)
}

// Static serves the built-in sample tournament data. Used when no database
// is configured, and as the fallback when the database holds no rows yet.
type Static struct{}

func (Static) Bundle(_ context.Context) (Bundle, error) {
	return Defaults(), nil
}

// Defaults returns the built-in sample roster and script.
func Defaults() Bundle {
	return Bundle{
		TeamsData: []Team{
			{
				ID:         "team_a",
				University: "イカ大学",
				TeamName:   "インクリングス",
				Comment:    "優勝目指して頑張ります！チーム一丸となって、最高のプレイを見せたいです。応援よろしくお願いします！",
				TeamInfo:   "各メンバーの連携力を武器に、安定して前線を押し上げるのが得意なチームです。昨年度の大学対抗戦ではベスト4に入賞しており、今大会でも優勝候補の一角と目されています。",
				PlayerInfo: "プレイヤーAはXP3200を超えるチームのエースです。特に近距離での対面性能が非常に高く、相手を圧倒します。\nプレイヤーCは長射程ブキでの正確なエイムが光り、後方からチームを支える重要な役割を担っています。",
				CircleName: "インク研究会",
				CircleInfo: "週3回、オンラインとオフラインを組み合わせて活動しています。初心者から上級者まで幅広く在籍しており、学内では最大規模のスプラトゥーンサークルです。",
				P1Name:     "プレイヤーA", P1XP: "3250", P1Weapons: "スプラシューター/N-ZAP85/シャープマーカー",
				P2Name: "プレイヤーB", P2XP: "2750", P2Weapons: "プライムシューター",
				P3Name: "プレイヤーC", P3XP: "2600", P3Weapons: "リッター4K/スプラスコープ",
				P4Name: "プレイヤーD", P4XP: "2650", P4Weapons: "スクリュースロッシャー",
			},
			{
				ID:         "team_b",
				University: "オクト大学",
				TeamName:   "オクトエキスパンションズ",
				Comment:    "一戦一戦、楽しんで勝ちにいきます。私たちのユニークな戦術に注目してください。",
				TeamInfo:   "メンバー個々の対面能力が非常に高く、どんな状況からでも逆転を狙える攻撃的なチーム編成です。特にガチエリアでの打開力には定評があり、その爆発力は大会屈指です。",
				PlayerInfo: "プレイヤーFはXP3300を誇る、チームの司令塔的存在です。広い視野と的確な判断力でチームを勝利に導きます。\nプレイヤーHは塗り性能の高いブキを得意とし、盤面をコントロールする能力に長けています。",
				CircleName: "タコゲーミング",
				CircleInfo: "プロ選手を複数輩出したこともある、全国でも有名な強豪サークルです。厳しい練習環境で知られています。",
				P1Name:     "プレイヤーE", P1XP: "2900", P1Weapons: "デュアルスイーパーカスタム",
				P2Name: "プレイヤーF", P2XP: "3300", P2Weapons: "スプラチャージャー/ジェットスイーパー",
				P3Name: "プレイヤーG", P3XP: "2720", P3Weapons: "ジムワイパー",
				P4Name: "プレイヤーH", P4XP: "2680", P4Weapons: "LACT-450/プロモデラーRG",
			},
		},
		ScriptData: []ScriptLine{
			{Speaker: "実況", Line: "さあ、始まりました大学杯決勝トーナメント！全国の強豪を勝ち抜いてきた2チームによる、頂上決戦です！"},
			{Speaker: "解説", Line: "今日の注目はやはり、イカ大学のエース、プレイヤーA選手ですね。彼のパフォーマンスが試合の鍵を握るでしょう。"},
			{Speaker: "実況", Line: "XP3200超え、まさに今大会のスタープレイヤーです！対するオクト大学も、チーム全体の練度が非常に高く、一筋縄ではいきません。"},
			{Speaker: "解説", Line: "特にプレイヤーF選手は、長射程ブキを使いこなし、相手チームに大きなプレッシャーを与え続けることができますからね。"},
		},
	}
}
